package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
)

// DynamoAPI is the subset of the DynamoDB client the registry uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const (
	kindPhoto = "PHOTO"
	kindGroup = "GROUP"
)

// dynamoItem is one row of the single-table registry layout. pk is "<kind>#<id>".
type dynamoItem struct {
	PK           string         `dynamodbav:"pk"`
	Kind         string         `dynamodbav:"kind"`
	ID           string         `dynamodbav:"id"`
	RetrievalURL string         `dynamodbav:"retrievalUrl,omitempty"`
	Timestamp    string         `dynamodbav:"timestamp"`
	TakenAt      string         `dynamodbav:"takenAt"`
	Members      []entity.Photo `dynamodbav:"members,omitempty"`
}

func dynamoKey(kind, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: kind + "#" + id}}
}

type dynamoRepository struct {
	api    DynamoAPI
	table  string
	logger *slog.Logger
}

// NewDynamoRepository returns a registry stored in one DynamoDB table keyed by the string attribute "pk".
func NewDynamoRepository(api DynamoAPI, table string, logger *slog.Logger) PhotoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &dynamoRepository{api: api, table: table, logger: logger}
}

func (r *dynamoRepository) Put(ctx context.Context, req PutRequest) error {
	if err := validatePut(req); err != nil {
		r.logger.Error("failed to store photo", "photo_id", req.Photo.ID, "error", err)
		return err
	}

	items := []dynamoItem{photoItem(req.Photo)}
	if req.Group != nil {
		seen := map[string]bool{req.Photo.ID: true}
		for _, m := range req.Group.Photos {
			if !seen[m.ID] {
				seen[m.ID] = true
				items = append(items, photoItem(m))
			}
		}
		takenAt, _ := sortableTime(req.Group.Timestamp)
		items = append(items, dynamoItem{
			PK:        kindGroup + "#" + req.Group.ID,
			Kind:      kindGroup,
			ID:        req.Group.ID,
			Timestamp: req.Group.Timestamp,
			TakenAt:   takenAt,
			Members:   req.Group.Photos,
		})
	}

	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("%w: marshal %s: %v", common.ErrDatabase, it.PK, err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(r.table), Item: av},
		})
	}
	if _, err := r.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		r.logger.Error("failed to store registry items", "table", r.table, "items", len(writes), "error", err)
		return fmt.Errorf("%w: transact write: %v", common.ErrDatabase, err)
	}
	return nil
}

func photoItem(p entity.Photo) dynamoItem {
	takenAt, _ := sortableTime(p.Timestamp)
	return dynamoItem{
		PK:           kindPhoto + "#" + p.ID,
		Kind:         kindPhoto,
		ID:           p.ID,
		RetrievalURL: p.RetrievalURL,
		Timestamp:    p.Timestamp,
		TakenAt:      takenAt,
	}
}

func (r *dynamoRepository) get(ctx context.Context, kind, id string) (*dynamoItem, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            dynamoKey(kind, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error("failed to get registry item", "kind", kind, "id", id, "error", err)
		return nil, fmt.Errorf("%w: get item: %v", common.ErrDatabase, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("%w: unmarshal item: %v", common.ErrDatabase, err)
	}
	return &it, nil
}

func (r *dynamoRepository) Get(ctx context.Context, id string) (*entity.Photo, error) {
	it, err := r.get(ctx, kindPhoto, id)
	if err != nil {
		return nil, err
	}
	return &entity.Photo{ID: it.ID, RetrievalURL: it.RetrievalURL, Timestamp: it.Timestamp}, nil
}

func (r *dynamoRepository) GetGroup(ctx context.Context, groupID string) (*entity.Group, error) {
	it, err := r.get(ctx, kindGroup, groupID)
	if err != nil {
		return nil, err
	}
	return &entity.Group{ID: it.ID, Photos: it.Members, Timestamp: it.Timestamp}, nil
}

func (r *dynamoRepository) ListGroups(ctx context.Context, from, to *time.Time) ([]*entity.Group, error) {
	filter := "#kind = :kind"
	names := map[string]string{"#kind": "kind"}
	values := map[string]types.AttributeValue{":kind": &types.AttributeValueMemberS{Value: kindGroup}}
	if from != nil {
		filter += " AND takenAt >= :from"
		values[":from"] = &types.AttributeValueMemberS{Value: boundString(from)}
	}
	if to != nil {
		filter += " AND takenAt < :to"
		values[":to"] = &types.AttributeValueMemberS{Value: boundString(to)}
	}

	var items []dynamoItem
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.table),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			r.logger.Error("failed to scan registry", "table", r.table, "error", err)
			return nil, fmt.Errorf("%w: scan: %v", common.ErrDatabase, err)
		}
		var page []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("%w: unmarshal scan: %v", common.ErrDatabase, err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].TakenAt != items[j].TakenAt {
			return items[i].TakenAt < items[j].TakenAt
		}
		return items[i].ID < items[j].ID
	})
	groups := make([]*entity.Group, 0, len(items))
	for _, it := range items {
		groups = append(groups, &entity.Group{ID: it.ID, Photos: it.Members, Timestamp: it.Timestamp})
	}
	return groups, nil
}

// ping confirms the table exists and is reachable.
func (r *dynamoRepository) ping(ctx context.Context) error {
	out, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err != nil {
		return err
	}
	if out.Table == nil {
		return errors.New("describe table returned no table")
	}
	return nil
}
