package validators

import "go.mongodb.org/mongo-driver/bson"

// objectIDString matches references stored as hex ObjectIDs.
var objectIDString = bson.M{
	"bsonType":  "string",
	"minLength": 24,
	"maxLength": 24,
}

var decimal = bson.M{
	"bsonType": []string{"decimal", "double", "int", "long"},
}

// integer accepts both widths since the driver picks one by magnitude.
var integer = []string{"int", "long"}
