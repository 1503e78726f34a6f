package validators

import "go.mongodb.org/mongo-driver/bson"

var ProductValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "price", "seller_id", "category", "sport", "stock", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"price":     decimal,
			"seller_id": objectIDString,
			"category": bson.M{
				"bsonType": "string",
				"enum":     []string{"equipment", "apparel", "accessories", "nutrition", "other"},
			},
			"sport": bson.M{"bsonType": "string"},
			// Stock can never go negative, even under concurrent reservations.
			"stock": bson.M{
				"bsonType": integer,
				"minimum":  0,
			},
			"reviews": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"user_id", "rating"},
					"properties": bson.M{
						"rating": bson.M{
							"bsonType": integer,
							"minimum":  1,
							"maximum":  5,
						},
					},
				},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
