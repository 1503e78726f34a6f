package validators

import "go.mongodb.org/mongo-driver/bson"

var CoachValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "specialties", "hourly_rate", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"user_id": objectIDString,
			"specialties": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items":    bson.M{"bsonType": "string"},
			},
			"experience": bson.M{
				"bsonType": integer,
				"minimum":  0,
				"maximum":  80,
			},
			"hourly_rate": decimal,
			"availability": bson.M{
				"bsonType": "object",
			},
			"location": bson.M{
				"bsonType": "object",
				"required": []string{"type", "coordinates"},
			},
			"rating": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
				"maximum":  5,
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
