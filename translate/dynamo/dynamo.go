// Package dynamo provides a blockcache.Translator backed by a DynamoDB table
// of file extents.
//
// Table schema:
//   - Partition key: file_id (number)
//   - Sort key: file_offset (number) - first byte of the extent
//   - Attributes: length (number), cluster (number)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name blockcache-extents \
//	  --attribute-definitions AttributeName=file_id,AttributeType=N AttributeName=file_offset,AttributeType=N \
//	  --key-schema AttributeName=file_id,KeyType=HASH AttributeName=file_offset,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/translate"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConflict is returned when an extent overlaps one already in the table.
var ErrConflict = errors.New("extent conflicts with an existing mapping")

// Translator resolves clusters by querying the extent table.
type Translator struct {
	client Client
	table  string
}

var _ blockcache.Translator = (*Translator)(nil)

// New creates a translator over table.
func New(client Client, table string) *Translator {
	return &Translator{client: client, table: table}
}

func num(v uint64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)}
}

func parseNum(item map[string]types.AttributeValue, name string) (uint64, error) {
	attr, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid %s attribute in DynamoDB", name)
	}
	v, err := strconv.ParseUint(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}

// floor returns the extent with the greatest file offset at or below offset.
func (t *Translator) floor(ctx context.Context, fileID, offset uint64) (translate.Extent, bool, error) {
	resp, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.table),
		KeyConditionExpression: aws.String("file_id = :f AND file_offset <= :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": num(fileID),
			":o": num(offset),
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return translate.Extent{}, false, fmt.Errorf("failed to query DynamoDB: %w", err)
	}
	if len(resp.Items) == 0 {
		return translate.Extent{}, false, nil
	}

	item := resp.Items[0]
	var e translate.Extent
	if e.FileOffset, err = parseNum(item, "file_offset"); err != nil {
		return translate.Extent{}, false, err
	}
	if e.Length, err = parseNum(item, "length"); err != nil {
		return translate.Extent{}, false, err
	}
	if e.Cluster, err = parseNum(item, "cluster"); err != nil {
		return translate.Extent{}, false, err
	}
	return e, true, nil
}

// ResolveCluster implements blockcache.Translator.
func (t *Translator) ResolveCluster(ctx context.Context, f blockcache.File, offset uint64) (uint64, uint64, error) {
	e, ok, err := t.floor(ctx, f.ID(), offset)
	if err != nil {
		return 0, 0, err
	}
	if !ok || offset >= e.End() {
		return 0, 0, fmt.Errorf("file %d offset %d: %w", f.ID(), offset, translate.ErrUnmapped)
	}
	sector := f.Device().SectorSize()
	if sector <= 0 {
		return 0, 0, fmt.Errorf("%w: sector size %d", blockcache.ErrInvalidArgument, sector)
	}
	cluster, remaining := e.Resolve(offset, sector)
	return cluster, remaining, nil
}

// Map stores an extent for the file. The extent must not overlap one already
// mapped; a concurrent writer mapping the same offset makes it fail with
// ErrConflict.
func (t *Translator) Map(ctx context.Context, fileID uint64, e translate.Extent) error {
	if e.Length == 0 || e.End() < e.FileOffset {
		return fmt.Errorf("%w: extent [%d,+%d)", blockcache.ErrInvalidArgument, e.FileOffset, e.Length)
	}

	// The closest extent starting inside the new one, or before it.
	prev, ok, err := t.floor(ctx, fileID, e.End()-1)
	if err != nil {
		return err
	}
	if ok && prev.End() > e.FileOffset {
		return fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrConflict, e.FileOffset, e.End(), prev.FileOffset, prev.End())
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item: map[string]types.AttributeValue{
			"file_id":     num(fileID),
			"file_offset": num(e.FileOffset),
			"length":      num(e.Length),
			"cluster":     num(e.Cluster),
		},
		ConditionExpression: aws.String("attribute_not_exists(file_offset)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConflict
		}
		return fmt.Errorf("failed to put extent to DynamoDB: %w", err)
	}
	return nil
}

// Unmap deletes the extent starting at fileOffset.
func (t *Translator) Unmap(ctx context.Context, fileID, fileOffset uint64) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key: map[string]types.AttributeValue{
			"file_id":     num(fileID),
			"file_offset": num(fileOffset),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete extent from DynamoDB: %w", err)
	}
	return nil
}
