package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cityreports/libs/reportview"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoIssueTypeFields = []string{"issueType", "type", "category"}

// MongoSource reads the listing from a reports collection.
type MongoSource struct {
	Collection *mongo.Collection
	Limit      int64
}

func (s *MongoSource) FetchReports(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error) {
	limit := s.Limit
	if limit < 1 {
		limit = defaultFetchLimit
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit)

	cur, err := s.Collection.Find(ctx, buildMongoFilter(criteria), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	defer cur.Close(ctx)

	raws := []reportview.RawReport{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		raws = append(raws, mongoDocToRaw(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return raws, nil
}

// buildMongoFilter pushes status and issue type down, case-insensitively.
func buildMongoFilter(criteria reportview.FilterCriteria) bson.M {
	filter := bson.M{}

	if status := strings.TrimSpace(criteria.Status); status != "" {
		aliases := reportview.StatusAliases(reportview.NormalizeStatus(status))
		patterns := make(bson.A, 0, len(aliases))
		for _, alias := range aliases {
			patterns = append(patterns, exactMatchRegex(alias))
		}
		filter["status"] = bson.M{"$in": patterns}
	}
	if issueType := strings.TrimSpace(criteria.IssueType); issueType != "" {
		pattern := exactMatchRegex(issueType)
		clauses := make([]bson.M, 0, len(mongoIssueTypeFields))
		for _, field := range mongoIssueTypeFields {
			clauses = append(clauses, bson.M{field: pattern})
		}
		filter["$or"] = clauses
	}

	return filter
}

// exactMatchRegex tolerates surrounding whitespace in stored values, which the normalizer trims.
func exactMatchRegex(value string) primitive.Regex {
	return primitive.Regex{Pattern: `^\s*` + regexp.QuoteMeta(value) + `\s*$`, Options: "i"}
}

// mongoDocToRaw turns BSON-specific values into the plain shapes the normalizer reads.
func mongoDocToRaw(doc bson.M) reportview.RawReport {
	raw := make(reportview.RawReport, len(doc))
	for key, value := range doc {
		raw[key] = plainBSONValue(value)
	}
	return raw
}

func plainBSONValue(value any) any {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.Timestamp:
		return int64(v.T)
	case primitive.Decimal128:
		return v.String()
	case bson.M:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			out[key] = plainBSONValue(nested)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, elem := range v {
			out[elem.Key] = plainBSONValue(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, 0, len(v))
		for _, nested := range v {
			out = append(out, plainBSONValue(nested))
		}
		return out
	}
	return value
}
