// Package mongo implements registryread.Store backed by MongoDB: the
// production persistence path for services, tools, and access policies.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/capsearch/internal/domain"
	"goa.design/capsearch/internal/registryread"
)

const (
	servicesCollection = "services"
	toolsCollection    = "tools"
	policiesCollection = "access_policies"
	defaultTimeout     = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// Store implements registryread.Store over three collections in one
// database: services, tools, access_policies.
type Store struct {
	services *mongodriver.Collection
	tools    *mongodriver.Collection
	policies *mongodriver.Collection
	timeout  time.Duration
}

var _ registryread.Store = (*Store)(nil)

// New constructs a Store and ensures the indexes it relies on exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("registryread/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("registryread/mongo: database is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	db := opts.Client.Database(opts.Database)
	s := &Store{
		services: db.Collection(servicesCollection),
		tools:    db.Collection(toolsCollection),
		policies: db.Collection(policiesCollection),
		timeout:  timeout,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping reports whether the underlying Mongo client can reach the cluster,
// used by the /api/v1/health readiness check for the "registry" component.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.services.Database().Client().Ping(ctx, nil)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.services.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("registryread/mongo: ensure services index: %w", err)
	}
	if _, err := s.tools.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "service_id", Value: 1}, {Key: "tool_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("registryread/mongo: ensure tools index: %w", err)
	}
	if _, err := s.policies.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "service_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("registryread/mongo: ensure policies index: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) ListActiveServicesWithRelations(ctx context.Context) ([]domain.ServiceBundle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.services.Find(ctx, bson.M{"status": string(domain.ServiceStatusActive)})
	if err != nil {
		return nil, fmt.Errorf("registryread/mongo: list services: %w", err)
	}
	defer cur.Close(ctx)

	var docs []serviceDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("registryread/mongo: decode services: %w", err)
	}

	out := make([]domain.ServiceBundle, 0, len(docs))
	for _, d := range docs {
		policies, err := s.policiesFor(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		svc := d.toDomain()
		out = append(out, domain.ServiceBundle{
			Service:            svc,
			IntegrationDetails: svc.IntegrationDetails,
			AgentProtocol:      svc.AgentProtocol,
			Policies:           policies,
		})
	}
	return out, nil
}

func (s *Store) ListActiveToolsWithService(ctx context.Context) ([]domain.ToolBundle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.tools.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("registryread/mongo: list tools: %w", err)
	}
	defer cur.Close(ctx)

	var toolDocs []toolDocument
	if err := cur.All(ctx, &toolDocs); err != nil {
		return nil, fmt.Errorf("registryread/mongo: decode tools: %w", err)
	}

	out := make([]domain.ToolBundle, 0, len(toolDocs))
	for _, td := range toolDocs {
		bundle, err := s.GetServiceBundle(ctx, td.ServiceID)
		if errors.Is(err, registryread.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if bundle.Service.Status != domain.ServiceStatusActive {
			continue
		}
		out = append(out, domain.ToolBundle{Tool: td.toDomain(), Service: bundle})
	}
	return out, nil
}

func (s *Store) GetServiceBundle(ctx context.Context, id int64) (domain.ServiceBundle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var d serviceDocument
	if err := s.services.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.ServiceBundle{}, registryread.ErrNotFound
		}
		return domain.ServiceBundle{}, fmt.Errorf("registryread/mongo: get service: %w", err)
	}
	policies, err := s.policiesFor(ctx, id)
	if err != nil {
		return domain.ServiceBundle{}, err
	}
	svc := d.toDomain()
	return domain.ServiceBundle{
		Service:            svc,
		IntegrationDetails: svc.IntegrationDetails,
		AgentProtocol:      svc.AgentProtocol,
		Policies:           policies,
	}, nil
}

func (s *Store) GetToolBundle(ctx context.Context, id int64) (domain.ToolBundle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var td toolDocument
	if err := s.tools.FindOne(ctx, bson.M{"_id": id}).Decode(&td); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.ToolBundle{}, registryread.ErrNotFound
		}
		return domain.ToolBundle{}, fmt.Errorf("registryread/mongo: get tool: %w", err)
	}
	bundle, err := s.GetServiceBundle(ctx, td.ServiceID)
	if err != nil {
		return domain.ToolBundle{}, err
	}
	return domain.ToolBundle{Tool: td.toDomain(), Service: bundle}, nil
}

func (s *Store) GetServiceByName(ctx context.Context, name string) (domain.ServiceBundle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var d serviceDocument
	if err := s.services.FindOne(ctx, bson.M{"name": name}).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.ServiceBundle{}, registryread.ErrNotFound
		}
		return domain.ServiceBundle{}, fmt.Errorf("registryread/mongo: get service by name: %w", err)
	}
	policies, err := s.policiesFor(ctx, d.ID)
	if err != nil {
		return domain.ServiceBundle{}, err
	}
	svc := d.toDomain()
	return domain.ServiceBundle{
		Service:            svc,
		IntegrationDetails: svc.IntegrationDetails,
		AgentProtocol:      svc.AgentProtocol,
		Policies:           policies,
	}, nil
}

func (s *Store) policiesFor(ctx context.Context, serviceID int64) ([]domain.AccessPolicy, error) {
	cur, err := s.policies.Find(ctx, bson.M{"service_id": serviceID})
	if err != nil {
		return nil, fmt.Errorf("registryread/mongo: list policies: %w", err)
	}
	defer cur.Close(ctx)
	var docs []policyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("registryread/mongo: decode policies: %w", err)
	}
	out := make([]domain.AccessPolicy, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}
