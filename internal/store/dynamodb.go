package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

const (
	valueSK   = "VALUE"
	setPrefix = "SET#"
	keyPrefix = "KV#"
)

// dynamoItem is the single-table layout: PK holds the key (or set name), SK is
// VALUE for plain keys and the member for sets. TTL is epoch seconds and is
// also checked on read because DynamoDB deletes expired items lazily.
type dynamoItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Payload []byte `dynamodbav:"Payload,omitempty"`
	TTL     int64  `dynamodbav:"TTL,omitempty"`
}

// DynamoStore keeps state in a DynamoDB table with a PK/SK string key schema
// and TTL enabled on the TTL attribute.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewDynamoStore(client *dynamodb.Client, tableName string, logger *logrus.Logger) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *DynamoStore) live(item dynamoItem) bool {
	return item.TTL == 0 || s.now().Unix() < item.TTL
}

func (s *DynamoStore) newItem(key string, value []byte, ttl time.Duration) (map[string]types.AttributeValue, error) {
	item := dynamoItem{PK: keyPrefix + key, SK: valueSK, Payload: value}
	if ttl > 0 {
		item.TTL = s.now().Add(ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return av, nil
}

func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(keyPrefix+key, valueSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to get item from DynamoDB")
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	if !s.live(item) {
		return nil, ErrNotFound
	}
	if item.Payload == nil {
		item.Payload = []byte{}
	}
	return item.Payload, nil
}

func (s *DynamoStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	av, err := s.newItem(key, value, ttl)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to store item in DynamoDB")
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	av, err := s.newItem(key, value, ttl)
	if err != nil {
		return false, err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if old == nil {
		// An expired item that has not been swept yet counts as absent.
		input.ConditionExpression = aws.String("attribute_not_exists(PK) OR (attribute_exists(#ttl) AND #ttl <= :now)")
		input.ExpressionAttributeNames = map[string]string{"#ttl": "TTL"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		}
	} else {
		input.ConditionExpression = aws.String("Payload = :old")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":old": &types.AttributeValueMemberB{Value: old},
		}
	}

	_, err = s.client.PutItem(ctx, input)
	return s.conditionalResult(key, err)
}

func (s *DynamoStore) CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error) {
	if old == nil {
		return false, nil
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(keyPrefix+key, valueSK),
		ConditionExpression: aws.String("Payload = :old"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":old": &types.AttributeValueMemberB{Value: old},
		},
	})
	return s.conditionalResult(key, err)
}

func (s *DynamoStore) conditionalResult(key string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	s.logger.WithError(err).WithField("key", key).Error("Conditional write to DynamoDB failed")
	return false, fmt.Errorf("conditional write %s: %w", key, err)
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(keyPrefix+key, valueSK),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) AddMember(ctx context.Context, set, member string) error {
	av, err := attributevalue.MarshalMap(dynamoItem{PK: setPrefix + set, SK: member})
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", member, set, err)
	}
	return nil
}

func (s *DynamoStore) RemoveMember(ctx context.Context, set, member string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(setPrefix+set, member),
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", member, set, err)
	}
	return nil
}

func (s *DynamoStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(setPrefix+set, member),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check %s in %s: %w", member, set, err)
	}
	return result.Item != nil, nil
}

func (s *DynamoStore) Members(ctx context.Context, set string) ([]string, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: setPrefix + set},
		},
		ConsistentRead: aws.Bool(true),
	})

	var members []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", set, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal members: %w", err)
		}
		for _, item := range items {
			members = append(members, item.SK)
		}
	}
	sort.Strings(members)
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (s *DynamoStore) Close() error { return nil }
