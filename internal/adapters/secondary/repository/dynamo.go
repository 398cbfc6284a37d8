package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// DynamoDB caps BatchWriteItem at 25 requests.
const dynamoMaxBatch = 25

const (
	attrPK    = "pk"
	attrSK    = "sk"
	attrValue = "val"
	attrCount = "n"
)

// DynamoAPI is the subset of *dynamodb.Client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore maps every logical table onto one physical table:
// pk = table#partition, sk = "#"+sort (key attributes cannot be empty).
// Values live in "val" (B), counters in "n" (N).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (d *DynamoStore) MaxBatchSize() int { return dynamoMaxBatch }

func dynamoKey(k ports.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: k.Table + "#" + k.Partition},
		attrSK: &types.AttributeValueMemberS{Value: "#" + k.Sort},
	}
}

func dynamoItem(it ports.Item) map[string]types.AttributeValue {
	av := dynamoKey(it.Key)
	av[attrValue] = &types.AttributeValueMemberB{Value: it.Value}
	return av
}

// fromDynamo rebuilds a row. The logical table is known to the caller, since
// partitions may themselves contain '#'.
func fromDynamo(table string, av map[string]types.AttributeValue) (ports.Item, error) {
	pk, ok := av[attrPK].(*types.AttributeValueMemberS)
	if !ok || len(pk.Value) <= len(table) {
		return ports.Item{}, fmt.Errorf("dynamo: malformed pk")
	}
	sk, ok := av[attrSK].(*types.AttributeValueMemberS)
	if !ok || sk.Value == "" {
		return ports.Item{}, fmt.Errorf("dynamo: malformed sk")
	}
	it := ports.Item{Key: ports.Key{
		Table:     table,
		Partition: pk.Value[len(table)+1:],
		Sort:      sk.Value[1:],
	}}
	switch v := av[attrValue].(type) {
	case *types.AttributeValueMemberB:
		it.Value = v.Value
	default:
		if n, ok := av[attrCount].(*types.AttributeValueMemberN); ok {
			it.Value = []byte(n.Value)
		}
	}
	return it, nil
}

func (d *DynamoStore) Get(ctx context.Context, key ports.Key) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            dynamoKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}
	it, err := fromDynamo(key.Table, out.Item)
	if err != nil {
		return nil, err
	}
	return it.Value, nil
}

func (d *DynamoStore) Put(ctx context.Context, item ports.Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      dynamoItem(item),
	})
	return err
}

func (d *DynamoStore) Delete(ctx context.Context, key ports.Key) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       dynamoKey(key),
	})
	return err
}

// BatchPut hands back DynamoDB's UnprocessedItems. Throttling of the whole call
// leaves the whole batch unprocessed.
func (d *DynamoStore) BatchPut(ctx context.Context, items []ports.Item) ([]ports.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	reqs := make([]types.WriteRequest, len(items))
	byKey := make(map[string]ports.Item, len(items))
	for i, it := range items {
		reqs[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: dynamoItem(it)}}
		byKey[flatKey(it.Key)] = it
	}

	out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{d.table: reqs},
	})
	if err != nil {
		if isThrottle(err) {
			return items, nil
		}
		return nil, err
	}

	var unprocessed []ports.Item
	for _, req := range out.UnprocessedItems[d.table] {
		if req.PutRequest == nil {
			continue
		}
		pk, _ := req.PutRequest.Item[attrPK].(*types.AttributeValueMemberS)
		sk, _ := req.PutRequest.Item[attrSK].(*types.AttributeValueMemberS)
		if pk == nil || sk == nil {
			continue
		}
		if it, ok := byKey[pk.Value+"\x00"+sk.Value]; ok {
			unprocessed = append(unprocessed, it)
		}
	}
	return unprocessed, nil
}

func flatKey(k ports.Key) string {
	return k.Table + "#" + k.Partition + "\x00#" + k.Sort
}

// BatchGet does not chase UnprocessedKeys: reads are not retried, so leftovers are an error.
func (d *DynamoStore) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	avs := make([]map[string]types.AttributeValue, 0, len(keys))
	tables := make(map[string]string, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		fk := flatKey(k)
		if _, dup := seen[fk]; dup {
			continue
		}
		seen[fk] = struct{}{}
		avs = append(avs, dynamoKey(k))
		tables[k.Table+"#"+k.Partition] = k.Table
	}

	out, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			d.table: {Keys: avs, ConsistentRead: aws.Bool(true)},
		},
	})
	if err != nil {
		return nil, err
	}
	if left := out.UnprocessedKeys[d.table].Keys; len(left) > 0 {
		return nil, fmt.Errorf("dynamo: %d keys left unprocessed", len(left))
	}

	rows := out.Responses[d.table]
	items := make([]ports.Item, 0, len(rows))
	for _, row := range rows {
		pk, _ := row[attrPK].(*types.AttributeValueMemberS)
		if pk == nil {
			return nil, fmt.Errorf("dynamo: row without pk")
		}
		it, err := fromDynamo(tables[pk.Value], row)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (d *DynamoStore) Query(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	pk := q.Table + "#" + q.Partition
	in := &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if q.After != "" {
		in.ExclusiveStartKey = dynamoKey(ports.Key{Table: q.Table, Partition: q.Partition, Sort: q.After})
	}

	// A response stops at 1 MB with a LastEvaluatedKey even below Limit: keep reading.
	var items []ports.Item
	for {
		if q.Limit > 0 {
			in.Limit = aws.Int32(int32(q.Limit - len(items)))
		}
		out, err := d.client.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, row := range out.Items {
			it, err := fromDynamo(q.Table, row)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		if len(out.LastEvaluatedKey) == 0 || (q.Limit > 0 && len(items) >= q.Limit) {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (d *DynamoStore) Increment(ctx context.Context, key ports.Key, delta int64) (int64, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              dynamoKey(key),
		UpdateExpression: aws.String("ADD #n :d"),
		ExpressionAttributeNames: map[string]string{
			"#n": attrCount,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[attrCount].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamo: counter %s/%s missing from update result", key.Partition, key.Sort)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func isThrottle(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	return errors.As(err, &throughput) || errors.As(err, &limit)
}
