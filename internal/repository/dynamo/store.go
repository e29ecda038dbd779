// Package dynamo provides a DynamoDB-backed metadata repository.
//
// The table uses "user" as partition key and "path" as sort key. A master entry
// and the owner's per-user entry share the same key.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/awsconf"
	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
	"github.com/and161185/filekeeper/internal/repository"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// record is the stored item layout.
type record struct {
	User       string   `dynamodbav:"user"`
	Path       string   `dynamodbav:"path"`
	Read       bool     `dynamodbav:"read"`
	Write      bool     `dynamodbav:"write"`
	Users      []string `dynamodbav:"users,stringset"`
	DeleteTime *int64   `dynamodbav:"delete-time,omitempty"` // unix seconds
}

// Store implements MetadataRepository on a DynamoDB table.
type Store struct {
	client API
	table  string
	log    *zap.Logger
}

// New creates a store with an existing client.
func New(client API, table string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, table: table, log: log}
}

// NewFromConfig builds the DynamoDB client from AWS options.
func NewFromConfig(ctx context.Context, table string, o awsconf.Options, log *zap.Logger) (*Store, error) {
	cfg, err := awsconf.Load(ctx, o)
	if err != nil {
		return nil, err
	}
	var ddbOpts []func(*dynamodb.Options)
	if o.Endpoint != "" {
		ddbOpts = append(ddbOpts, func(do *dynamodb.Options) {
			do.BaseEndpoint = aws.String(o.Endpoint)
		})
	}
	return New(dynamodb.NewFromConfig(cfg, ddbOpts...), table, log), nil
}

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func key(user, path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user": &types.AttributeValueMemberS{Value: user},
		"path": &types.AttributeValueMemberS{Value: path},
	}
}

// CreateMasterEntry puts the owner's entry with an attribute_not_exists condition.
func (s *Store) CreateMasterEntry(ctx context.Context, p fpath.FilePath) (model.CreateOutcome, error) {
	e := model.NewMasterEntry(p)
	item, err := attributevalue.MarshalMap(record{
		User:  e.Owner,
		Path:  e.Path,
		Read:  e.Read,
		Write: e.Write,
		Users: e.Users,
	})
	if err != nil {
		s.log.Error("marshal master entry", zap.String("path", e.Path), zap.Error(err))
		return 0, errs.Server("failed to create master entry")
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#u)"),
		ExpressionAttributeNames: map[string]string{
			"#u": "user",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return model.AlreadyExisted, nil
		}
		s.log.Error("create master entry", zap.String("path", e.Path), zap.Error(err))
		return 0, errs.Server("failed to create master entry")
	}
	return model.Created, nil
}

// GetMasterEntry reads the permission attributes of the master entry.
func (s *Store) GetMasterEntry(ctx context.Context, p fpath.FilePath) (*model.MasterEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.table),
		Key:                  key(p.Owner(), p.Normalized()),
		ProjectionExpression: aws.String("#r, #w, #us, #dt"),
		ExpressionAttributeNames: map[string]string{
			"#r":  "read",
			"#w":  "write",
			"#us": "users",
			"#dt": "delete-time",
		},
	})
	if err != nil {
		s.log.Error("get master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return nil, errs.Server("retrieving metadata failed")
	}
	if len(out.Item) == 0 {
		return nil, errs.NotFound("master entry not found")
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		s.log.Error("unmarshal master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return nil, errs.Server("corrupted file metadata")
	}

	e := &model.MasterEntry{
		Owner: p.Owner(),
		Path:  p.Normalized(),
		Read:  rec.Read,
		Write: rec.Write,
		Users: rec.Users,
	}
	if rec.DeleteTime != nil {
		ts := unixTime(*rec.DeleteTime)
		e.DeleteTime = &ts
	}
	return e, nil
}

// DeleteMasterEntry fans out per-user deletes, then deletes the master entry.
// The master delete is attempted even if the fan-out failed.
func (s *Store) DeleteMasterEntry(ctx context.Context, p fpath.FilePath) error {
	e, err := s.GetMasterEntry(ctx, p)
	if err != nil {
		return err
	}
	fanOutErr := s.deleteUserEntries(ctx, p, e.Users)

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key(p.Owner(), p.Normalized()),
	})
	if err != nil {
		s.log.Error("delete master entry", zap.String("path", p.Normalized()), zap.Error(err))
		return errs.Server("changing file metadata failed")
	}
	return fanOutErr
}

// deleteUserEntries issues one BatchWriteItem per batch of at most 25 keys,
// the BatchWriteItem request limit.
func (s *Store) deleteUserEntries(ctx context.Context, p fpath.FilePath, users []string) error {
	var failed []string
	for _, batch := range repository.Chunk(users, repository.FanOutBatchSize) {
		reqs := make([]types.WriteRequest, 0, len(batch))
		for _, u := range batch {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key(u, p.Normalized())},
			})
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: reqs},
		})
		if err != nil {
			s.log.Error("delete user entries", zap.String("path", p.Normalized()), zap.Error(err))
			failed = append(failed, batch...)
			continue
		}
		failed = append(failed, unprocessedUsers(out.UnprocessedItems[s.table])...)
	}

	if len(failed) > 0 {
		s.log.Warn("user file entries left behind",
			zap.String("path", p.Normalized()),
			zap.Strings("users", failed),
		)
		return errs.Server("failed to delete user file entries")
	}
	return nil
}

func unprocessedUsers(reqs []types.WriteRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if r.DeleteRequest == nil {
			continue
		}
		if u, ok := r.DeleteRequest.Key["user"].(*types.AttributeValueMemberS); ok {
			out = append(out, u.Value)
		} else {
			out = append(out, fmt.Sprintf("%v", r.DeleteRequest.Key["user"]))
		}
	}
	return out
}

var _ repository.MetadataRepository = (*Store)(nil)
