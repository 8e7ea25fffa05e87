package implementation

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
)

// MongoReadingRepository persists readings in the primary document store.
type MongoReadingRepository struct {
	coll *mongo.Collection
}

func NewMongoReadingRepository(coll *mongo.Collection) *MongoReadingRepository {
	return &MongoReadingRepository{coll: coll}
}

func (r *MongoReadingRepository) Save(ctx context.Context, reading *agsmodels.SensorReading) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if reading.ID == "" {
		reading.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.coll.InsertOne(ctx, reading); err != nil {
		return "", err
	}
	return reading.ID, nil
}

func (r *MongoReadingRepository) List(ctx context.Context, filter agsmodels.ReadingFilter, limit int64) ([]agsmodels.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.DeviceID != "" {
		query["device_id"] = filter.DeviceID
	}
	ts := bson.M{}
	if filter.From != nil {
		ts["$gte"] = *filter.From
	}
	if filter.To != nil {
		ts["$lte"] = *filter.To
	}
	if len(ts) > 0 {
		query["timestamp"] = ts
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var readings []agsmodels.SensorReading
	if err := cur.All(ctx, &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *MongoReadingRepository) Latest(ctx context.Context, deviceID string) (*agsmodels.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	var reading agsmodels.SensorReading
	err := r.coll.FindOne(ctx, bson.M{"device_id": deviceID}, opts).Decode(&reading)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *MongoReadingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
