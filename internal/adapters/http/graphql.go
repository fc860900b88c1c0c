package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"flight_id":           &graphql.Field{Type: graphql.String},
			"origin_name":         &graphql.Field{Type: graphql.String},
			"destination_name":    &graphql.Field{Type: graphql.String},
			"origin":              &graphql.Field{Type: geoPointType},
			"destination":         &graphql.Field{Type: geoPointType},
			"distance_km":         &graphql.Field{Type: graphql.Float},
			"initial_bearing_deg": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"center":    &graphql.Field{Type: geoPointType},
			"zoom_hint": &graphql.Field{Type: graphql.Int},
			"bounds":    &graphql.Field{Type: boundsType},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"flight_id":   &graphql.Field{Type: graphql.String},
			"position":    &graphql.Field{Type: geoPointType},
			"heading_deg": &graphql.Field{Type: graphql.Float},
		},
	})

	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Frame",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"progress":   &graphql.Field{Type: graphql.Float},
			"routes":     &graphql.Field{Type: graphql.NewList(routeType)},
			"viewport":   &graphql.Field{Type: viewportType},
			"markers":    &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"geocode": &graphql.Field{
				Type:        geoPointType,
				Description: "Resolve a place name to coordinates",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["name"].(string)
					return deps.Geocoder.Resolve(p.Context, name)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Great-circle route between two place names",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"flight_id":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					leg := domain.FlightLeg{
						FlightID:        p.Args["flight_id"].(string),
						OriginName:      p.Args["origin"].(string),
						DestinationName: p.Args["destination"].(string),
					}
					origin, err := deps.Geocoder.Resolve(p.Context, leg.OriginName)
					if err != nil {
						return nil, err
					}
					dest, err := deps.Geocoder.Resolve(p.Context, leg.DestinationName)
					if err != nil {
						return nil, err
					}
					return usecases.BuildRoute(leg, origin, dest), nil
				},
			},
			"frame": &graphql.Field{
				Type:        frameType,
				Description: "Current frame of a map session",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Args["session_id"].(string))
					if err != nil {
						return nil, err
					}
					return s.Frame(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
