// SPDX-FileCopyrightText: 2022-present Intel Corporation
// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/omec-project/mme/logger"
	"github.com/omec-project/util/fsm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Namespace      = os.Getenv("POD_NAMESPACE")
	MmeUeDataColl  = "mme.data.nasState"
	dbTimeout      = 5 * time.Second
	ErrUeNotStored = errors.New("ue context not stored")
)

// UeContextDocument is the persisted form of one UE context.
type UeContextDocument struct {
	UeId     int64      `json:"mmeUeS1apId"`
	Imsi     string     `json:"imsi,omitempty"`
	EmmState string     `json:"emmState"`
	Ue       *UeContext `json:"ue"`
}

// NasStateStore persists UE contexts between task loop messages.
type NasStateStore interface {
	Put(ctx context.Context, doc *UeContextDocument) error
	Get(ctx context.Context, ueId int64) (*UeContextDocument, error)
	Delete(ctx context.Context, ueId int64) error
	List(ctx context.Context) ([]*UeContextDocument, error)
	Close(ctx context.Context) error
}

func newDocument(ue *UeContext) *UeContextDocument {
	doc := &UeContextDocument{UeId: ue.UeId, Ue: ue}
	if imsi, ok := ue.Emm.Imsi.Get(); ok {
		doc.Imsi = imsi
	}
	if ue.Emm.State != nil {
		doc.EmmState = string(ue.Emm.State.Current())
	}
	return doc
}

// restore rebuilds the parts of a UE context that are not persisted.
func (doc *UeContextDocument) restore() (*UeContext, error) {
	ue := doc.Ue
	if ue == nil || ue.Emm == nil {
		return nil, fmt.Errorf("document of ue %d has no context", doc.UeId)
	}
	state := fsm.StateType(doc.EmmState)
	if state == "" {
		state = Deregistered
	}
	ue.Emm.UeId = ue.UeId
	ue.Emm.State = fsm.NewState(state)
	ue.Emm.Procedures = make(map[ProcedureType]*Procedure)
	if ue.PdnSessions == nil {
		ue.PdnSessions = make(map[uint8]*PdnSession)
	}
	ue.Log = logger.MmeAppLog.With(logger.FieldUeId, ue.UeId)
	ue.Emm.Log = logger.EmmLog.With(logger.FieldUeId, ue.UeId)
	if imsi, ok := ue.Emm.Imsi.Get(); ok {
		ue.AttachLogger(imsi)
	}
	return ue, nil
}

func toBsonM(doc *UeContextDocument) (bson.M, error) {
	tmp, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var ret bson.M
	if err = json.Unmarshal(tmp, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func fromBsonM(m bson.M) (*UeContextDocument, error) {
	delete(m, "_id")
	tmp, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	doc := &UeContextDocument{}
	if err = json.Unmarshal(tmp, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MemoryStore keeps documents as JSON so that a Get returns an independent copy.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[int64][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, doc *UeContextDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.UeId] = b
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ueId int64) (*UeContextDocument, error) {
	s.mu.Lock()
	b, ok := s.docs[ueId]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUeNotStored
	}
	doc := &UeContextDocument{}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MemoryStore) Delete(_ context.Context, ueId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ueId)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*UeContextDocument, error) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	docs := make([]*UeContextDocument, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrUeNotStored) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// MongoStore persists UE contexts in one MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, url, dbName string) (*MongoStore, error) {
	if url == "" {
		url = "mongodb://mongodb:27017"
	}
	if dbName == "" {
		dbName = "sdcore_mme"
	}
	collName := MmeUeDataColl
	if Namespace != "" {
		collName = Namespace + "." + collName
	}
	logger.DbLog.Infof("MongoDB name: %v, url: %v, collection: %v", dbName, url, collName)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	coll := client.Database(dbName).Collection(collName)
	for _, key := range []string{"mmeUeS1apId", "imsi"} {
		model := mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}}
		if _, err = coll.Indexes().CreateOne(ctx, model); err != nil {
			logger.DbLog.Errorf("create index failed on %s field: %v", key, err)
		}
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Put(ctx context.Context, doc *UeContextDocument) error {
	m, err := toBsonM(doc)
	if err != nil {
		return err
	}
	filter := bson.M{"mmeUeS1apId": doc.UeId}
	_, err = s.coll.ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, ueId int64) (*UeContextDocument, error) {
	var m bson.M
	err := s.coll.FindOne(ctx, bson.M{"mmeUeS1apId": ueId}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUeNotStored
	}
	if err != nil {
		return nil, err
	}
	return fromBsonM(m)
}

func (s *MongoStore) Delete(ctx context.Context, ueId int64) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"mmeUeS1apId": ueId})
	return err
}

func (s *MongoStore) List(ctx context.Context) ([]*UeContextDocument, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []*UeContextDocument
	for cur.Next(ctx) {
		var m bson.M
		if err = cur.Decode(&m); err != nil {
			return nil, err
		}
		doc, err := fromBsonM(m)
		if err != nil {
			logger.DbLog.Errorf("skip malformed document: %v", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// GetMmeNasState makes the NAS state available to the caller. With
// readThrough set, UE contexts persisted in the store and not yet in memory
// are loaded and indexed first.
func (c *MmeContext) GetMmeNasState(readThrough bool) error {
	if !readThrough {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	docs, err := c.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("load nas state: %w", err)
	}
	for _, doc := range docs {
		if _, ok := c.UeContextById(doc.UeId); ok {
			continue
		}
		ue, err := doc.restore()
		if err != nil {
			logger.DbLog.Warnf("skip ue %d: %v", doc.UeId, err)
			continue
		}
		c.UePool.Store(ue.UeId, ue)
		if imsi, ok := ue.Emm.Imsi.Get(); ok {
			c.ImsiPool.Store(imsi, ue.UeId)
			c.imsiByUe.Store(ue.UeId, imsi)
		}
		if ue.Emm.Guti.IsPresent() {
			guti := ue.Emm.Guti.Value()
			c.GutiPool.Store(guti.String(), ue.UeId)
			c.TmsiPool.Store(guti.MTmsi, ue.UeId)
		}
		logger.DbLog.Infof("restored ue %d in state %s", ue.UeId, doc.EmmState)
	}
	return nil
}

// PutMmeNasState writes back UE contexts changed since the last call and
// deletes the ones that were removed. With ids given only those UE contexts
// are written, which lets a shard flush its own UE without reading contexts
// owned by other shards.
func (c *MmeContext) PutMmeNasState(ids ...int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if len(ids) == 0 {
		c.dirty.Range(func(k, _ interface{}) bool {
			ids = append(ids, k.(int64))
			return true
		})
	}
	var errs []error
	for _, id := range ids {
		if _, ok := c.dirty.LoadAndDelete(id); !ok {
			continue
		}
		ue, ok := c.UeContextById(id)
		if !ok {
			continue
		}
		if err := c.Store.Put(ctx, newDocument(ue)); err != nil {
			errs = append(errs, fmt.Errorf("put ue %d: %w", id, err))
			c.dirty.Store(id, struct{}{})
		}
	}
	var removed []int64
	c.removed.Range(func(k, _ interface{}) bool {
		removed = append(removed, k.(int64))
		return true
	})
	for _, id := range removed {
		c.removed.Delete(id)
		if err := c.Store.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete ue %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
