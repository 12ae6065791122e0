package rpmongo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jeremywhuff/rpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	}
	container, err := testcontainers.GenericContainer(ctx, req)
	require.NoError(t, err)
	defer testcontainers.CleanupContainer(t, container)

	uri, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	coll := client.Database("rpapi_test").Collection("users")
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	require.NoError(t, err)

	api, err := rpapi.New("api", rpapi.WithLogger(nil))
	require.NoError(t, err)
	_, err = NewResource(api, coll, rpapi.ResourceConfig{Path: "users", Fields: userFields()})
	require.NoError(t, err)

	w := serve(api, http.MethodPost, "/api/users", `{"name":"ada","age":36,"city":"London"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = serve(api, http.MethodPost, "/api/users", `{"name":"ada"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(api, http.MethodPost, "/api/users", `{"name":"alan","age":41}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(api, http.MethodGet, "/api/users?age__gt=40", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(1), list["total"])

	w = serve(api, http.MethodPatch, "/api/users/"+id, `{"city":"Paris"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"id": id, "name": "ada", "age": float64(36), "city": "Paris"}, decode(t, w))

	w = serve(api, http.MethodDelete, "/api/users/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(api, http.MethodGet, "/api/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
