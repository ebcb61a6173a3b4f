package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	recyclersCollection = "recyclers"
)

type accountDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Phone       string             `bson:"phone,omitempty"`
	Password    string             `bson:"password,omitempty"`
	CompanyName string             `bson:"companyName,omitempty"`
	IsVerified  bool               `bson:"isVerified"`
	IsAdmin     bool               `bson:"isAdmin"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

// MongoStore resolves principals from the users and recyclers collections.
type MongoStore struct {
	users     *mongo.Collection
	recyclers *mongo.Collection
	now       func() time.Time
}

// NewMongoStore binds the store to the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:     db.Collection(usersCollection),
		recyclers: db.Collection(recyclersCollection),
		now:       time.Now,
	}
}

// EnsureIndexes creates the unique email index on both collections.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	}
	for _, coll := range []*mongo.Collection{s.users, s.recyclers} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) collection(role Role) (*mongo.Collection, error) {
	switch role {
	case RoleUser:
		return s.users, nil
	case RoleRecycler:
		return s.recyclers, nil
	default:
		return nil, fmt.Errorf("identity: unsupported role %q", role)
	}
}

func (s *MongoStore) FindByID(ctx context.Context, role Role, id string) (Principal, error) {
	coll, err := s.collection(role)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound
	}
	var doc accountDoc
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	if err := coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find %s %s: %w", role, id, err)
	}
	return doc.principal(role), nil
}

func (s *MongoStore) FindCredentials(ctx context.Context, role Role, email string) (Credentials, error) {
	coll, err := s.collection(role)
	if err != nil {
		return Credentials{}, err
	}
	var doc accountDoc
	if err := coll.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("find %s credentials: %w", role, err)
	}
	return Credentials{Principal: doc.principal(role), PasswordHash: doc.Password}, nil
}

func (s *MongoStore) Create(ctx context.Context, role Role, account NewAccount) (Principal, error) {
	coll, err := s.collection(role)
	if err != nil {
		return nil, err
	}
	doc := accountDoc{
		Name:      strings.TrimSpace(account.Name),
		Email:     NormalizeEmail(account.Email),
		Phone:     strings.TrimSpace(account.Phone),
		Password:  account.PasswordHash,
		CreatedAt: s.now().UTC(),
	}
	if role == RoleRecycler {
		doc.CompanyName = strings.TrimSpace(account.CompanyName)
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert %s: %w", role, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.principal(role), nil
}

func (d accountDoc) principal(role Role) Principal {
	if role == RoleRecycler {
		return Recycler{
			ID:          d.ID.Hex(),
			Name:        d.Name,
			Email:       d.Email,
			Phone:       d.Phone,
			CompanyName: d.CompanyName,
			Verified:    d.IsVerified,
			Admin:       d.IsAdmin,
			CreatedAt:   d.CreatedAt,
		}
	}
	return User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Admin:     d.IsAdmin,
		CreatedAt: d.CreatedAt,
	}
}
