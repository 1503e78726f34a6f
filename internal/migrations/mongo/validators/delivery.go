package validators

import (
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var DeliveryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"order_id", "partner", "tracking_number", "status", "expected_delivery_date", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":      bson.M{"bsonType": "objectId"},
			"order_id": objectIDString,
			"partner": bson.M{
				"bsonType": "object",
				"required": []string{"name", "contact_number", "company_name"},
			},
			"tracking_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					model.DeliveryPending,
					model.DeliveryInTransit,
					model.DeliveryOutForDelivery,
					model.DeliveryDelivered,
					model.DeliveryFailed,
					model.DeliveryReturned,
				},
			},
			"expected_delivery_date": bson.M{"bsonType": "date"},
			"actual_delivery_date":   bson.M{"bsonType": "date"},
			"attempts": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"attempt_date", "status"},
				},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
