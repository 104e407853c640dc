package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

const (
	schemasCollection = "schemas"
	usersCollection   = "users"
)

// Mongo is the MongoDB backend. Records live in one collection with
// ObjectID identities; schema versions and users have their own
// collections in the same database.
type Mongo struct {
	client  *mongo.Client
	records *mongo.Collection
	schemas *mongo.Collection
	users   *mongo.Collection
}

// OpenMongo connects, pings and ensures indexes.
func OpenMongo(ctx context.Context, opts Options) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()

	clientOpts := options.Client().ApplyURI(opts.URL)
	if opts.MaxConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(opts.MaxConns))
	}
	if opts.MinConns > 0 {
		clientOpts.SetMinPoolSize(uint64(opts.MinConns))
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(opts.database())
	m := &Mongo{
		client:  client,
		records: db.Collection(opts.collection()),
		schemas: db.Collection(schemasCollection),
		users:   db.Collection(usersCollection),
	}

	if _, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create users index: %w", err)
	}
	if _, err := m.schemas.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}, {Key: "version", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create schemas index: %w", err)
	}

	return m, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) SaveSchema(ctx context.Context, d schema.Descriptor) error {
	if _, err := m.schemas.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	return nil
}

func (m *Mongo) LatestSchema(ctx context.Context) (schema.Descriptor, error) {
	var d schema.Descriptor
	err := m.schemas.FindOne(ctx,
		bson.M{"name": schema.ModelName},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return schema.Descriptor{}, ErrNotFound
	}
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("find latest schema: %w", err)
	}
	return d, nil
}

func (m *Mongo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := m.records.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return res.DeletedCount, nil
}

func (m *Mongo) InsertMany(ctx context.Context, records []map[string]any, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}

	inserted := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		now := mongoNow()
		models := make([]mongo.WriteModel, 0, end-start)
		for _, rec := range records[start:end] {
			models = append(models, mongo.NewInsertOneModel().SetDocument(newMongoDoc(rec, now)))
		}

		res, err := m.records.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
		if res != nil {
			inserted += int(res.InsertedCount)
		}
		if err != nil {
			return inserted, fmt.Errorf("bulk insert records %d-%d: %w", start, end, err)
		}
	}
	return inserted, nil
}

func (m *Mongo) Count(ctx context.Context, q Query) (int64, error) {
	n, err := m.records.CountDocuments(ctx, mongoFilter(q))
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (m *Mongo) Find(ctx context.Context, q Query) ([]Document, error) {
	sortField := q.SortField
	if sortField == "" {
		sortField = FieldCreatedAt
	}
	dir := 1
	if q.SortDesc {
		dir = -1
	}

	findOpts := options.Find().SetSort(bson.D{{Key: sortField, Value: dir}, {Key: FieldID, Value: dir}})
	if q.Skip > 0 {
		findOpts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}

	cur, err := m.records.Find(ctx, mongoFilter(q), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	docs := make([]Document, len(raw))
	for i, r := range raw {
		docs[i] = decodeMongoDoc(r)
	}
	return docs, nil
}

func (m *Mongo) Get(ctx context.Context, id string) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	var raw bson.M
	err = m.records.FindOne(ctx, bson.M{FieldID: oid}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get record: %w", err)
	}
	return decodeMongoDoc(raw), nil
}

func (m *Mongo) Insert(ctx context.Context, fields map[string]any) (Document, error) {
	now := mongoNow()
	doc := newMongoDoc(fields, now)
	res, err := m.records.InsertOne(ctx, doc)
	if err != nil {
		return Document{}, fmt.Errorf("insert record: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return Document{
		ID:        oid.Hex(),
		Fields:    cloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Replace swaps the record's fields in one server-side step, keeping _id
// and createdAt. Values are wrapped in $literal so strings starting with
// "$" are not read as field paths.
func (m *Mongo) Replace(ctx context.Context, id string, fields map[string]any) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Document{}, ErrNotFound
	}

	literal := bson.M{}
	for k, v := range cloneFields(fields) {
		literal[k] = bson.M{"$literal": v}
	}
	system := bson.M{FieldID: "$" + FieldID, FieldCreatedAt: "$" + FieldCreatedAt, FieldUpdatedAt: mongoNow()}
	pipeline := mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.M{"$mergeObjects": bson.A{literal, system}}}},
	}

	return m.findOneAndUpdate(ctx, oid, pipeline)
}

func (m *Mongo) Update(ctx context.Context, id string, fields map[string]any) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Document{}, ErrNotFound
	}

	set := bson.M{}
	for k, v := range cloneFields(fields) {
		set[k] = v
	}
	set[FieldUpdatedAt] = mongoNow()

	return m.findOneAndUpdate(ctx, oid, bson.M{"$set": set})
}

func (m *Mongo) findOneAndUpdate(ctx context.Context, oid primitive.ObjectID, update any) (Document, error) {
	var raw bson.M
	err := m.records.FindOneAndUpdate(ctx,
		bson.M{FieldID: oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("update record: %w", err)
	}
	return decodeMongoDoc(raw), nil
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := m.records.DeleteOne(ctx, bson.M{FieldID: oid})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"passwordHash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (m *Mongo) FindUser(ctx context.Context, username string) (User, error) {
	var mu mongoUser
	err := m.users.FindOne(ctx, bson.M{"username": username}).Decode(&mu)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return User{
		ID:           mu.ID.Hex(),
		Username:     mu.Username,
		PasswordHash: mu.PasswordHash,
		Role:         mu.Role,
		CreatedAt:    mu.CreatedAt.UTC(),
	}, nil
}

func (m *Mongo) CreateUser(ctx context.Context, u User) (User, error) {
	mu := mongoUser{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    mongoNow(),
	}
	res, err := m.users.InsertOne(ctx, mu)
	if mongo.IsDuplicateKeyError(err) {
		return User{}, ErrDuplicate
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	u.ID = oid.Hex()
	u.CreatedAt = mu.CreatedAt
	return u, nil
}

// mongoNow is truncated to the millisecond precision of BSON dates so the
// returned document equals what a later read would decode.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newMongoDoc(fields map[string]any, now time.Time) bson.M {
	doc := bson.M{}
	for k, v := range cloneFields(fields) {
		doc[k] = v
	}
	doc[FieldCreatedAt] = now
	doc[FieldUpdatedAt] = now
	return doc
}

func mongoFilter(q Query) bson.M {
	var and bson.A

	for _, clause := range q.Clauses {
		var or bson.A
		for _, match := range clause {
			or = append(or, bson.M{match.Field: bson.M{
				"$regex":   regexp.QuoteMeta(match.Value),
				"$options": "i",
			}})
		}
		switch len(or) {
		case 0:
		case 1:
			and = append(and, or[0])
		default:
			and = append(and, bson.M{"$or": or})
		}
	}

	if r := q.Range; r != nil && (r.From != nil || r.To != nil) {
		bounds := bson.M{}
		if r.From != nil {
			bounds["$gte"] = *r.From
		}
		if r.To != nil {
			bounds["$lte"] = *r.To
		}
		and = append(and, bson.M{r.Field: bounds})
	}

	if !q.CreatedAfter.IsZero() {
		and = append(and, bson.M{FieldCreatedAt: bson.M{"$gte": q.CreatedAfter}})
	}

	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

func decodeMongoDoc(raw bson.M) Document {
	d := Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case FieldID:
			if oid, ok := v.(primitive.ObjectID); ok {
				d.ID = oid.Hex()
			} else {
				d.ID = fmt.Sprint(v)
			}
		case FieldCreatedAt:
			d.CreatedAt, _ = mongoValue(v).(time.Time)
		case FieldUpdatedAt:
			d.UpdatedAt, _ = mongoValue(v).(time.Time)
		case "__v":
			// mongoose version key on records written by older tooling
		default:
			d.Fields[k] = mongoValue(v)
		}
	}
	return d
}

// mongoValue converts decoded BSON scalars to the store's value set.
func mongoValue(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case primitive.Decimal128:
		return val.String()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}
