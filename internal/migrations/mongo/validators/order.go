package validators

import (
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var OrderValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "items", "shipping_address", "total_price", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"user_id": objectIDString,
			"items": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"product_id", "quantity", "price"},
					"properties": bson.M{
						"product_id": objectIDString,
						"quantity": bson.M{
							"bsonType": integer,
							"minimum":  1,
						},
						"price": decimal,
					},
				},
			},
			"shipping_address": bson.M{
				"bsonType": "object",
				"required": []string{"street", "city", "state", "country", "postal_code"},
			},
			"items_price":    decimal,
			"shipping_price": decimal,
			"tax_price":      decimal,
			"total_price":    decimal,
			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					model.OrderPending,
					model.OrderConfirmed,
					model.OrderShipped,
					model.OrderDelivered,
					model.OrderCancelled,
				},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
