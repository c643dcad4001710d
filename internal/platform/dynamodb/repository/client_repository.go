package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/dynamodb/client"
)

const (
	clientsPartition = "CLIENTS"
	profileSortKey   = "PROFILE"
	attrVersion      = "version"
	attrUpdatedAt    = "updatedAt"

	// sortableTime keeps GSI1SK in creation order under string comparison.
	sortableTime = "2006-01-02T15:04:05.000000000Z"

	// updateAttempts bounds the optimistic retry loop of UpdateClient.
	updateAttempts = 3
)

// DynamoDBClientRepository implements the portal.Repository interface.
// Each client is one item; period statuses and task lists are root attributes.
type DynamoDBClientRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBClientRepository creates a new DynamoDBClientRepository
func NewDynamoDBClientRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBClientRepository {
	return &DynamoDBClientRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

type clientSummaryDDB struct {
	ID        string    `dynamodbav:"id"`
	Name      string    `dynamodbav:"name"`
	Email     string    `dynamodbav:"email"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

func clientKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CLIENT#%s", id)},
		"SK": &types.AttributeValueMemberS{Value: profileSortKey},
	}
}

// CreateClient writes a new client item
func (r *DynamoDBClientRepository) CreateClient(ctx context.Context, record *portal.ClientRecord) (string, error) {
	item, err := attributevalue.MarshalMap(record.RootAttributes())
	if err != nil {
		return "", commonErrors.NewInternalError("failed to marshal client", err)
	}

	for k, v := range clientKey(record.ID) {
		item[k] = v
	}
	item["GSI1PK"] = &types.AttributeValueMemberS{Value: clientsPartition}
	item["GSI1SK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#%s", record.CreatedAt.UTC().Format(sortableTime), record.ID)}
	item["Type"] = &types.AttributeValueMemberS{Value: "client"}
	item[attrVersion] = &types.AttributeValueMemberN{Value: "1"}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return "", commonErrors.NewConflictError("client already exists")
		}
		return "", commonErrors.NewInternalError("failed to create client", err)
	}

	return record.ID, nil
}

// GetClient reads the whole client item
func (r *DynamoDBClientRepository) GetClient(ctx context.Context, id string) (*portal.ClientRecord, error) {
	rec, _, err := r.getClient(ctx, id)
	return rec, err
}

func (r *DynamoDBClientRepository) getClient(ctx context.Context, id string) (*portal.ClientRecord, int64, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            clientKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, 0, commonErrors.NewInternalError("failed to get client", err)
	}
	if len(result.Item) == 0 {
		return nil, 0, commonErrors.NewNotFoundError("client not found")
	}

	keys := make([]string, 0, len(result.Item))
	for k := range result.Item {
		keys = append(keys, k)
	}
	rec, err := portal.DecodeRecord(keys, func(key string, target any) error {
		return attributevalue.Unmarshal(result.Item[key], target)
	})
	if err != nil {
		return nil, 0, commonErrors.NewInternalError("failed to unmarshal client", err)
	}

	var version int64
	if n, ok := result.Item[attrVersion].(*types.AttributeValueMemberN); ok {
		version, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	return rec, version, nil
}

// UpdateClient applies a partial update. Dotted status paths are merged into
// their year map and each touched root attribute is written back whole,
// conditioned on the item version read.
func (r *DynamoDBClientRepository) UpdateClient(ctx context.Context, id string, fields portal.Fields) error {
	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		rec, version, err := r.getClient(ctx, id)
		if err != nil {
			return err
		}
		if err := rec.Apply(fields); err != nil {
			return err
		}

		err = r.writeRoots(ctx, id, rec, fields.RootKeys(), version)
		if err == nil {
			return nil
		}
		var condCheckErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condCheckErr) {
			return commonErrors.NewInternalError("failed to update client", err)
		}
		lastErr = err
		r.logger.WarnContext(ctx, "client changed during update, retrying", "clientId", id, "attempt", attempt+1)
	}
	return commonErrors.NewConflictError(fmt.Sprintf("client %s was modified concurrently: %v", id, lastErr))
}

func (r *DynamoDBClientRepository) writeRoots(ctx context.Context, id string, rec *portal.ClientRecord, roots []string, version int64) error {
	update := expression.Set(expression.Name(attrUpdatedAt), expression.Value(time.Now().UTC()))
	update = update.Set(expression.Name(attrVersion), expression.Value(version+1))
	for _, key := range roots {
		value, ok := rec.RootValue(key)
		if !ok {
			continue
		}
		update = update.Set(expression.Name(key), expression.Value(value))
	}

	cond := expression.AttributeExists(expression.Name("PK"))
	if version > 0 {
		cond = cond.And(expression.Name(attrVersion).Equal(expression.Value(version)))
	} else {
		cond = cond.And(expression.AttributeNotExists(expression.Name(attrVersion)))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       clientKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// ListClients queries GSI1 for every client profile, oldest first
func (r *DynamoDBClientRepository) ListClients(ctx context.Context) ([]portal.ClientSummary, error) {
	keyCondition := expression.Key("GSI1PK").Equal(expression.Value(clientsPartition))
	projection := expression.NamesList(
		expression.Name(portal.AttrID),
		expression.Name(portal.AttrName),
		expression.Name(portal.AttrEmail),
		expression.Name(portal.AttrCreatedAt),
	)

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).WithProjection(projection).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String("GSI1"),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	summaries := []portal.ClientSummary{}
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, commonErrors.NewInternalError("failed to query clients", err)
		}

		var page []clientSummaryDDB
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal clients", err)
		}
		for _, c := range page {
			summaries = append(summaries, portal.ClientSummary(c))
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	r.logger.DebugContext(ctx, "ListClients", "count", len(summaries))
	return summaries, nil
}
