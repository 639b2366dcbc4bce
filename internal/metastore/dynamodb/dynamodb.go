// Package dynamodb implements the metastore.Store interface on a single
// DynamoDB table with a two-attribute key: runs live under PK=RUN#<id>,
// checkpoints under PK=CHECKPOINT#<source>, both with SK=META.
package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ecopipe-systems/ecopipe/internal/lifecycle"
	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Compile-time interface satisfaction check.
var _ metastore.Store = (*Store)(nil)

// PK/SK prefix constants.
const (
	prefixRun        = "RUN#"
	prefixCheckpoint = "CHECKPOINT#"
	skMeta           = "META"
)

func runPK(runID string) string         { return prefixRun + runID }
func checkpointPK(source string) string { return prefixCheckpoint + source }

// DDBAPI is the subset of the DynamoDB client used by Store.
type DDBAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, input *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config holds the DynamoDB backend settings.
type Config struct {
	TableName string `yaml:"tableName"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"` // for DynamoDB Local
}

// Store implements metastore.Store backed by DynamoDB.
type Store struct {
	client    DDBAPI
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a custom DynamoDB client (useful for testing).
func WithClient(c DDBAPI) Option {
	return func(s *Store) { s.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a DynamoDB-backed store.
func New(cfg *Config, opts ...Option) (*Store, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("dynamodb table name required")
	}

	s := &Store{
		tableName: cfg.TableName,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		// For DynamoDB Local: static credentials and a custom endpoint.
		if cfg.Endpoint != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("local", "local", ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		var clientOpts []func(*dynamodb.Options)
		if cfg.Endpoint != "" {
			clientOpts = append(clientOpts, func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			})
		}
		s.client = dynamodb.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// Ping verifies the table is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
	}
	return nil
}

// runItem is the stored shape of a run record.
type runItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	types.Run
}

func (s *Store) putRun(ctx context.Context, run types.Run) error {
	item, err := attributevalue.MarshalMap(runItem{
		PK:  runPK(run.IngestionRunID),
		SK:  skMeta,
		Run: run,
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) getRun(ctx context.Context, runID string) (*types.Run, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: runPK(runID)},
			"sk": &ddbtypes.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", metastore.ErrUnknownRun, runID)
	}
	var item runItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item.Run, nil
}

// StartRun registers a new RUNNING run and returns its id.
func (s *Store) StartRun(ctx context.Context, scope string) (string, error) {
	runID := metastore.NewRunID()
	run := types.Run{
		IngestionRunID: runID,
		RunScope:       scope,
		Status:         types.RunRunning,
		StartTS:        s.now().UTC(),
	}
	if err := s.putRun(ctx, run); err != nil {
		return "", err
	}
	return runID, nil
}

// EndRun applies the terminal update to a run.
func (s *Store) EndRun(ctx context.Context, runID string, status types.RunStatus, opts metastore.EndRunOptions) (*types.Run, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if lifecycle.IsTerminal(run.Status) {
		return nil, fmt.Errorf("%w: run %s is %s", metastore.ErrInvalidTransition, runID, run.Status)
	}
	if err := lifecycle.Transition(run.Status, status); err != nil {
		return nil, fmt.Errorf("%w: %v", metastore.ErrInvalidTransition, err)
	}

	end := s.now().UTC()
	run.EndTS = &end
	run.Status = status
	if opts.RowsProcessed != nil {
		run.RowsProcessed = opts.RowsProcessed
	}
	if opts.LastCheckpoint != "" {
		run.LastCheckpoint = opts.LastCheckpoint
	}
	if opts.ErrorMessage != "" {
		run.ErrorMessage = opts.ErrorMessage
	}

	if err := s.putRun(ctx, *run); err != nil {
		return nil, err
	}
	return run, nil
}

// SaveCheckpoint overwrites the checkpoint value for a source.
func (s *Store) SaveCheckpoint(ctx context.Context, source, value string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"pk":     &ddbtypes.AttributeValueMemberS{Value: checkpointPK(source)},
			"sk":     &ddbtypes.AttributeValueMemberS{Value: skMeta},
			"source": &ddbtypes.AttributeValueMemberS{Value: source},
			"value":  &ddbtypes.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
	}
	return nil
}

// LoadCheckpoint returns the stored value for a source, or def when absent.
func (s *Store) LoadCheckpoint(ctx context.Context, source, def string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: checkpointPK(source)},
			"sk": &ddbtypes.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
	}
	if out.Item == nil {
		return def, nil
	}
	v, ok := out.Item["value"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return def, nil
	}
	return v.Value, nil
}

// ListRuns scans the run partition, newest-first. The run ledger is small
// (one item per stage execution), so a filtered scan is acceptable here.
func (s *Store) ListRuns(ctx context.Context, scope string) ([]types.Run, error) {
	var runs []types.Run
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &s.tableName,
			FilterExpression: aws.String("begins_with(pk, :prefix)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixRun},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", metastore.ErrStoreUnavailable, err)
		}
		for _, raw := range out.Items {
			var item runItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("skipping corrupt run item", "error", err)
				continue
			}
			if scope == "" || item.RunScope == scope {
				runs = append(runs, item.Run)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	// Scan order is not guaranteed; newest-first by start timestamp.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTS.After(runs[j].StartTS)
	})
	return runs, nil
}
