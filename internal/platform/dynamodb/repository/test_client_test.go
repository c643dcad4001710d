package repository

import (
	"context"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	equalCondition     = regexp.MustCompile(`(#\w+) = (:\w+)`)
	notExistsCondition = regexp.MustCompile(`attribute_not_exists ?\((#\w+)\)`)
)

// TestClient is an in-memory implementation of the DynamoDB client interface for testing.
// It understands the expressions the repositories build: SET updates, equality and
// existence conditions, and a single GSI1PK key condition.
type TestClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

// NewTestClient creates a new test client with an empty items map
func NewTestClient() *TestClient {
	return &TestClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func itemKey(key map[string]types.AttributeValue) string {
	pk := key["PK"].(*types.AttributeValueMemberS).Value
	sk := key["SK"].(*types.AttributeValueMemberS).Value
	return pk + "#" + sk
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// GetItem retrieves an item from the in-memory store
func (c *TestClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[itemKey(params.Key)]; exists {
		return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}, nil
}

// PutItem adds or updates an item in the in-memory store
func (c *TestClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := itemKey(params.Item)
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(PK)" {
		if _, exists := c.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("Item already exists")}
		}
	}

	c.items[key] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem applies SET clauses to an existing item
func (c *TestClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := itemKey(params.Key)
	item, exists := c.items[key]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("Item does not exist")}
	}

	cond := aws.ToString(params.ConditionExpression)
	for _, m := range equalCondition.FindAllStringSubmatch(cond, -1) {
		name := params.ExpressionAttributeNames[m[1]]
		if !reflect.DeepEqual(item[name], params.ExpressionAttributeValues[m[2]]) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("Condition failed")}
		}
	}
	for _, m := range notExistsCondition.FindAllStringSubmatch(cond, -1) {
		if _, ok := item[params.ExpressionAttributeNames[m[1]]]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("Condition failed")}
		}
	}

	updated := copyItem(item)
	for _, line := range strings.Split(aws.ToString(params.UpdateExpression), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "SET ") {
			continue
		}
		for _, clause := range strings.Split(strings.TrimPrefix(line, "SET "), ", ") {
			name, value, ok := strings.Cut(clause, " = ")
			if !ok {
				continue
			}
			updated[params.ExpressionAttributeNames[name]] = params.ExpressionAttributeValues[value]
		}
	}
	c.items[key] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

// Query returns the items whose GSI1PK matches the key condition, sorted by GSI1SK
func (c *TestClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var want types.AttributeValue
	for _, v := range params.ExpressionAttributeValues {
		want = v
	}

	items := []map[string]types.AttributeValue{}
	for _, item := range c.items {
		if reflect.DeepEqual(item["GSI1PK"], want) {
			items = append(items, copyItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i]["GSI1SK"].(*types.AttributeValueMemberS).Value < items[j]["GSI1SK"].(*types.AttributeValueMemberS).Value
	})
	return &dynamodb.QueryOutput{Items: items}, nil
}
