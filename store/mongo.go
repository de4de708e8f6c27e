package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. The first path segment names a
// collection, the second a document key, and deeper segments address
// fields inside the document. Change notifications are fanned out by an
// in-process hub after each mutation: the affected subtrees are re-read
// and delivered as full snapshots, which is all the subscription
// contract promises.
type MongoStore struct {
	db  *mongo.Database
	hub *hub
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, hub: newHub()}
}

func (s *MongoStore) Read(ctx context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	return s.read(ctx, segs)
}

func (s *MongoStore) Subscribe(path string, onChange func(Snapshot), onCancel func(error)) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	initial, err := s.read(ctx, segs)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(path, onChange, onCancel)
	s.hub.add(sub)
	sub.push(initial)
	return sub, nil
}

func (s *MongoStore) Write(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	switch len(segs) {
	case 1:
		return ErrInvalidPath
	case 2:
		doc, err := toDocument(value)
		if err != nil {
			return err
		}
		doc["_id"] = segs[1]
		_, err = s.db.Collection(segs[0]).ReplaceOne(ctx,
			bson.M{"_id": segs[1]}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return err
		}
	default:
		// Writing below a document creates it if needed, like the
		// memory store growing intermediate nodes.
		_, err := s.db.Collection(segs[0]).UpdateOne(ctx,
			bson.M{"_id": segs[1]},
			bson.M{"$set": bson.M{fieldPath(segs): value}},
			options.Update().SetUpsert(true))
		if err != nil {
			return err
		}
	}
	s.notify(path)
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) < 2 {
		return ErrInvalidPath
	}
	set := bson.M{}
	for name, value := range fields {
		set[fieldPath(append(append([]string{}, segs...), name))] = value
	}
	_, err = s.db.Collection(segs[0]).UpdateOne(ctx,
		bson.M{"_id": segs[1]}, bson.M{"$set": set},
		options.Update().SetUpsert(len(segs) == 2))
	if err != nil {
		return err
	}
	s.notify(path)
	return nil
}

func (s *MongoStore) Append(ctx context.Context, path string, value any) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", err
	}
	key := pushKey()
	if len(segs) == 1 {
		doc, err := toDocument(value)
		if err != nil {
			return "", err
		}
		doc["_id"] = key
		if _, err := s.db.Collection(segs[0]).InsertOne(ctx, doc); err != nil {
			return "", err
		}
	} else {
		_, err := s.db.Collection(segs[0]).UpdateOne(ctx,
			bson.M{"_id": segs[1]},
			bson.M{"$set": bson.M{fieldPath(append(append([]string{}, segs...), key)): value}},
			options.Update().SetUpsert(true))
		if err != nil {
			return "", err
		}
	}
	s.notify(path + "/" + key)
	return key, nil
}

func (s *MongoStore) Remove(ctx context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	switch len(segs) {
	case 1:
		return ErrInvalidPath
	case 2:
		if _, err := s.db.Collection(segs[0]).DeleteOne(ctx, bson.M{"_id": segs[1]}); err != nil {
			return err
		}
	default:
		_, err := s.db.Collection(segs[0]).UpdateOne(ctx,
			bson.M{"_id": segs[1]},
			bson.M{"$unset": bson.M{fieldPath(segs): ""}})
		if err != nil {
			return err
		}
	}
	s.notify(path)
	return nil
}

func (s *MongoStore) Query(ctx context.Context, path, orderBy string, equalTo any) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	if len(segs) != 1 {
		return Snapshot{}, ErrInvalidPath
	}
	cursor, err := s.db.Collection(segs[0]).Find(ctx, bson.M{orderBy: equalTo})
	if err != nil {
		return Snapshot{}, err
	}
	defer cursor.Close(ctx)
	return collectDocuments(ctx, segs[0], cursor)
}

func (s *MongoStore) read(ctx context.Context, segs []string) (Snapshot, error) {
	coll := s.db.Collection(segs[0])
	if len(segs) == 1 {
		cursor, err := coll.Find(ctx, bson.M{})
		if err != nil {
			return Snapshot{}, err
		}
		defer cursor.Close(ctx)
		return collectDocuments(ctx, segs[0], cursor)
	}

	var doc bson.M
	err := coll.FindOne(ctx, bson.M{"_id": segs[1]}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Snapshot{Key: segs[len(segs)-1]}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	delete(doc, "_id")
	value := fromBSON(doc)
	for _, seg := range segs[2:] {
		m, ok := value.(map[string]any)
		if !ok {
			return Snapshot{Key: segs[len(segs)-1]}, nil
		}
		value = m[seg]
	}
	return Snapshot{Key: segs[len(segs)-1], value: value}, nil
}

func (s *MongoStore) notify(path string) {
	s.hub.notify(path, func(subPath string) Snapshot {
		segs, err := splitPath(subPath)
		if err != nil {
			return Snapshot{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, err := s.read(ctx, segs)
		if err != nil {
			return Snapshot{Key: segs[len(segs)-1]}
		}
		return snap
	})
}

func collectDocuments(ctx context.Context, key string, cursor *mongo.Cursor) (Snapshot, error) {
	children := make(map[string]any)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return Snapshot{}, err
		}
		id, ok := doc["_id"].(string)
		if !ok {
			continue
		}
		delete(doc, "_id")
		children[id] = fromBSON(doc)
	}
	if err := cursor.Err(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Key: key, value: children}, nil
}

// fieldPath converts path segments below the document into a dotted
// Mongo field path. Keys are uids and generated keys, which never
// contain dots.
func fieldPath(segs []string) string {
	return strings.Join(segs[2:], ".")
}

// toDocument turns an arbitrary value into a bson.M so the generated
// key can be attached as _id.
func toDocument(value any) (bson.M, error) {
	raw, err := bson.Marshal(value)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// fromBSON rewrites driver types into the plain map/slice forms the
// Snapshot accessors expect.
func fromBSON(value any) any {
	switch v := value.(type) {
	case bson.M:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromBSON(e)
		}
		return out
	default:
		return v
	}
}
