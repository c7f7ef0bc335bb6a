// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/studyhub/internal/app/media"
	"github.com/dalemusser/studyhub/internal/app/system/tasks"

	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Media         *media.Store
	Tasks         *tasks.Runner
}
