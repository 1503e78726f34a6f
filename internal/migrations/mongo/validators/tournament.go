package validators

import (
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var TournamentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"sport",
			"format",
			"organizer_id",
			"start_date",
			"end_date",
			"registration_deadline",
			"max_teams",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 100,
			},
			"format": bson.M{
				"bsonType": "string",
				"enum":     []string{"knockout", "league", "group-stage"},
			},
			"organizer_id":          objectIDString,
			"start_date":            bson.M{"bsonType": "date"},
			"end_date":              bson.M{"bsonType": "date"},
			"registration_deadline": bson.M{"bsonType": "date"},
			"max_teams": bson.M{
				"bsonType": integer,
				"minimum":  2,
				"maximum":  64,
			},
			"teams": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"team_id", "status"},
					"properties": bson.M{
						"status": bson.M{
							"bsonType": "string",
							"enum":     []string{model.RegistrationPending, model.RegistrationApproved, model.RegistrationRejected},
						},
					},
				},
			},
			"entry_fee":  decimal,
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
