package validators

import (
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var TeamValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "sport", "captain_id", "players", "max_players", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"sport":      bson.M{"bsonType": "string"},
			"captain_id": objectIDString,
			"players": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"user_id", "role"},
					"properties": bson.M{
						"role": bson.M{
							"bsonType": "string",
							"enum":     []string{model.TeamRoleCaptain, model.TeamRoleViceCaptain, model.TeamRolePlayer},
						},
					},
				},
			},
			"max_players": bson.M{
				"bsonType": integer,
				"minimum":  2,
				"maximum":  30,
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
