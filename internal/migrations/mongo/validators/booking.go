package validators

import (
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"coach_id",
			"sport",
			"date",
			"slot",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": objectIDString,

			"coach_id": objectIDString,

			"sport": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},

			"date": bson.M{
				"bsonType": "date",
			},

			"slot": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d-([01]\d|2[0-3]):[0-5]\d$`,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					model.BookingPending,
					model.BookingConfirmed,
					model.BookingCancelled,
					model.BookingCompleted,
				},
			},

			"rating": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  5,
			},

			"active_slot_key": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
