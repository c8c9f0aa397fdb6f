// Package dynamodb executes index query ranges against a DynamoDB table
// keyed by the index's partition and sort keys.
//
// Table schema:
//   - Partition key: pk (binary) - tier byte ‖ bin id
//   - Sort key: sk (binary) - curve position
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name sfcgo-rows \
//	  --attribute-definitions AttributeName=pk,AttributeType=B AttributeName=sk,AttributeType=B \
//	  --key-schema AttributeName=pk,KeyType=HASH AttributeName=sk,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/sfcgo/model"
)

const (
	defaultPartitionKeyAttr = "pk"
	defaultSortKeyAttr      = "sk"
	defaultParallelism      = 4
)

// Client is the interface for the DynamoDB operations the reader needs.
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Option configures a RangeReader.
type Option func(*RangeReader)

// WithKeyAttributes overrides the partition/sort key attribute names.
func WithKeyAttributes(partitionKey, sortKey string) Option {
	return func(r *RangeReader) {
		r.pkAttr = partitionKey
		r.skAttr = sortKey
	}
}

// WithRateLimit throttles queries to n requests per second.
func WithRateLimit(n rate.Limit) Option {
	return func(r *RangeReader) { r.limiter = rate.NewLimiter(n, 1) }
}

// WithParallelism bounds the number of concurrent range queries.
func WithParallelism(n int) Option {
	return func(r *RangeReader) { r.parallelism = n }
}

// RangeReader translates index query ranges into DynamoDB key-condition
// queries: partition key equality plus an inclusive BETWEEN on the sort
// key, matching the index's inclusive range semantics.
type RangeReader struct {
	client      Client
	table       string
	pkAttr      string
	skAttr      string
	limiter     *rate.Limiter
	parallelism int
}

// New creates a reader on an existing client.
func New(client Client, table string, opts ...Option) *RangeReader {
	r := &RangeReader{
		client:      client,
		table:       table,
		pkAttr:      defaultPartitionKeyAttr,
		skAttr:      defaultSortKeyAttr,
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig creates a reader using the default AWS configuration
// chain.
func NewFromConfig(ctx context.Context, table string, opts ...Option) (*RangeReader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(dynamodb.NewFromConfig(cfg), table, opts...), nil
}

// QueryInput builds the DynamoDB query for one partition's sort-key
// range.
func (r *RangeReader) QueryInput(partitionKey []byte, rng model.ByteArrayRange) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("#pk = :pk AND #sk BETWEEN :lo AND :hi"),
		ExpressionAttributeNames: map[string]string{
			"#pk": r.pkAttr,
			"#sk": r.skAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberB{Value: partitionKey},
			":lo": &types.AttributeValueMemberB{Value: rng.Start},
			":hi": &types.AttributeValueMemberB{Value: rng.End},
		},
	}
}

// Query runs every range of the decomposition and returns the matching
// items. Ranges of distinct partitions run concurrently; pagination is
// followed to exhaustion.
func (r *RangeReader) Query(ctx context.Context, ranges model.QueryRanges) ([]map[string]types.AttributeValue, error) {
	var (
		mu    sync.Mutex
		items []map[string]types.AttributeValue
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, partition := range ranges.Partitions {
		for _, rng := range partition.Ranges {
			g.Go(func() error {
				input := r.QueryInput(partition.PartitionKey, rng)
				for {
					if r.limiter != nil {
						if err := r.limiter.Wait(ctx); err != nil {
							return err
						}
					}
					out, err := r.client.Query(ctx, input)
					if err != nil {
						return err
					}
					mu.Lock()
					items = append(items, out.Items...)
					mu.Unlock()
					if len(out.LastEvaluatedKey) == 0 {
						return nil
					}
					input.ExclusiveStartKey = out.LastEvaluatedKey
				}
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
