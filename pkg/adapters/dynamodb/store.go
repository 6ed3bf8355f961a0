package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultTTL is the lifetime of an idle conversation.
const DefaultTTL = 24 * time.Hour

const (
	pkPrefix = "CONV#"

	attrPK      = "PK"
	attrState   = "state"
	attrVersion = "version"
	attrTTL     = "ttl"
	attrUpdated = "updated_at"
)

// API is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements ports.StateStore on a DynamoDB table with a TTL attribute.
// Expired items are filtered on read since DynamoDB deletes them lazily.
type Store struct {
	api           API
	tableName     string
	ttl           time.Duration
	extendOnWrite bool
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for conversations. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithExtendOnWrite makes renewals refresh the expiry.
func WithExtendOnWrite(extend bool) Option {
	return func(s *Store) { s.extendOnWrite = extend }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store on tableName.
func New(api API, tableName string, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamodb: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb: table name must not be empty")
	}
	s := &Store{
		api:           api,
		tableName:     tableName,
		ttl:           DefaultTTL,
		extendOnWrite: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func pk(key string) string {
	return pkPrefix + key
}

func (s *Store) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk(key)},
	}
}

// Get retrieves the state for a channel key.
func (s *Store) Get(ctx context.Context, key string) (*domain.ConversationState, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, domain.ErrConversationNotFound
	}

	expiresAt, err := s.expiresAt(out.Item)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Get decode ttl: %w", err)
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return nil, domain.ErrConversationNotFound
	}

	raw, err := strAttr(out.Item, attrState)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Get: %w", err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("dynamodb: Get unmarshal: %w", err)
	}
	state.ExpiresAt = expiresAt
	return &state, nil
}

// Put writes the state item. Checked writes carry a condition on the version attribute.
func (s *Store) Put(ctx context.Context, key string, state *domain.ConversationState, opts ports.PutOptions) error {
	now := s.now()
	next := *state
	next.Version = state.Version + 1
	next.UpdatedAt = now.UTC()

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("dynamodb: Put marshal: %w", err)
	}

	item := map[string]types.AttributeValue{
		attrPK:      &types.AttributeValueMemberS{Value: pk(key)},
		attrState:   &types.AttributeValueMemberS{Value: string(data)},
		attrVersion: &types.AttributeValueMemberN{Value: strconv.FormatInt(next.Version, 10)},
		attrUpdated: &types.AttributeValueMemberS{Value: next.UpdatedAt.Format(time.RFC3339)},
	}

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = now.Add(s.ttl)
	}
	if opts.Renewal && !s.extendOnWrite && !state.ExpiresAt.IsZero() {
		expiresAt = state.ExpiresAt
	}
	if !expiresAt.IsZero() {
		item[attrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)}
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if opts.CheckVersion {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) OR version = :v")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(state.Version, 10)},
		}
	}

	if _, err := s.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("dynamodb: Put: %w", err)
	}

	state.Version = next.Version
	state.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete removes the state item.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Delete: %w", err)
	}
	return nil
}

// List scans the table for live conversation keys.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var (
		keys  []string
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.tableName),
			ProjectionExpression: aws.String("PK, #ttl"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": attrTTL,
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb: List scan: %w", err)
		}
		for _, item := range out.Items {
			expiresAt, err := s.expiresAt(item)
			if err != nil {
				return nil, fmt.Errorf("dynamodb: List decode ttl: %w", err)
			}
			if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
				continue
			}
			id, err := strAttr(item, attrPK)
			if err != nil {
				return nil, fmt.Errorf("dynamodb: List: %w", err)
			}
			keys = append(keys, strings.TrimPrefix(id, pkPrefix))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (s *Store) expiresAt(item map[string]types.AttributeValue) (time.Time, error) {
	if _, ok := item[attrTTL]; !ok {
		return time.Time{}, nil
	}
	unix, err := intAttr(item, attrTTL)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

func strAttr(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", name)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", name)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, name string) (int64, error) {
	v, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", name)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", name)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

// Open loads the default AWS configuration and creates a Store.
// An empty region defers to the environment.
func Open(ctx context.Context, tableName, region string, opts ...Option) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), tableName, opts...)
}
