// Package dynamo implements the schema registry repository on DynamoDB.
//
// Each version is one item: PK "SCHEMA#<class>#<type>", SK "V#<version>"
// zero-padded so versions sort numerically. Fields are stored as a JSON
// string.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// schemaItem represents a schema version stored in DynamoDB
type schemaItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Version   int    `dynamodbav:"Version"`
	Active    bool   `dynamodbav:"Active"`
	Fields    string `dynamodbav:"Fields"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// SchemaRepo implements schema.Repository against a DynamoDB table.
type SchemaRepo struct {
	client API
	table  string
}

// NewSchemaRepo creates a DynamoDB-backed schema repository.
func NewSchemaRepo(client API, table string) *SchemaRepo {
	return &SchemaRepo{client: client, table: table}
}

func partitionKey(tenantClass, importType string) string {
	return fmt.Sprintf("SCHEMA#%s#%s", tenantClass, importType)
}

func sortKey(version int) string {
	return fmt.Sprintf("V#%010d", version)
}

// versions returns every item of the pair, newest first.
func (r *SchemaRepo) versions(ctx context.Context, pk string, activeOnly bool) ([]schemaItem, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if activeOnly {
		in.FilterExpression = aws.String("Active = :active")
		in.ExpressionAttributeValues[":active"] = &types.AttributeValueMemberBOOL{Value: true}
	}

	var items []schemaItem
	for {
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query schemas %s: %w", pk, err)
		}
		var page []schemaItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal schemas: %w", err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *SchemaRepo) GetActive(ctx context.Context, tenantClass, importType string) (*domain.Schema, error) {
	items, err := r.versions(ctx, partitionKey(tenantClass, importType), true)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, schema.ErrSchemaNotFound
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.Version > best.Version {
			best = it
		}
	}

	s := &domain.Schema{TenantClass: tenantClass, ImportType: importType, Version: best.Version, Active: true}
	if err := json.Unmarshal([]byte(best.Fields), &s.Fields); err != nil {
		return nil, fmt.Errorf("decode schema %s v%d: %w", best.PK, best.Version, err)
	}
	return s, nil
}

// Publish writes the next version and deactivates active ones in a single
// transaction. The put is conditional on the version being new, so two
// concurrent publishers cannot both win.
func (r *SchemaRepo) Publish(ctx context.Context, tenantClass, importType string, fields map[string]domain.FieldDef) (*domain.Schema, error) {
	pk := partitionKey(tenantClass, importType)
	existing, err := r.versions(ctx, pk, false)
	if err != nil {
		return nil, err
	}
	version := 1
	for _, it := range existing {
		version = max(version, it.Version+1)
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	item, err := attributevalue.MarshalMap(schemaItem{
		PK:        pk,
		SK:        sortKey(version),
		Version:   version,
		Active:    true,
		Fields:    string(body),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal schema item: %w", err)
	}

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}}
	for _, it := range existing {
		if !it.Active {
			continue
		}
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(r.table),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: it.PK},
					"SK": &types.AttributeValueMemberS{Value: it.SK},
				},
				UpdateExpression: aws.String("SET Active = :false"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":false": &types.AttributeValueMemberBOOL{Value: false},
				},
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return nil, fmt.Errorf("%w: %s v%d", schema.ErrConcurrentPublish, pk, version)
		}
		return nil, fmt.Errorf("publish schema %s v%d: %w", pk, version, err)
	}

	return &domain.Schema{
		TenantClass: tenantClass,
		ImportType:  importType,
		Version:     version,
		Active:      true,
		Fields:      fields,
	}, nil
}
