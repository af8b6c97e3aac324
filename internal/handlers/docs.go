package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

func filterParams() []object {
	choice := object{"type": "string", "enum": []string{"All", "Yes", "No"}, "default": "All"}
	return []object{
		queryParam("start_date", "First day to include (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
		queryParam("end_date", "Last day to include (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
		queryParam("season", "Season label, or All", object{"type": "string", "enum": []string{"All", "Spring", "Summer", "Fall", "Winter", "Unknown"}}),
		queryParam("weather", "Weather code or its label, or All", object{"type": "string"}),
		queryParam("working_day", "Working day flag", choice),
		queryParam("holiday", "Holiday flag", choice),
	}
}

var errorSchema = object{
	"type": "object",
	"properties": object{
		"error":   object{"type": "string"},
		"message": object{"type": "string"},
		"code":    object{"type": "integer"},
	},
}

func errorResponses() object {
	return object{
		"400": object{"description": "Invalid filter value", "content": jsonContent(errorSchema)},
		"503": object{"description": "Dataset unavailable", "content": jsonContent(errorSchema)},
	}
}

func withResponses(ok object) object {
	responses := errorResponses()
	responses["200"] = ok
	return responses
}

var groupMeanSchema = object{
	"type": "object",
	"properties": object{
		"key":   object{"type": "string"},
		"label": object{"type": "string"},
		"mean":  object{"type": "number"},
		"count": object{"type": "integer"},
	},
}

// openAPIDocument builds the OpenAPI 3.0 description of the dashboard API.
func openAPIDocument() object {
	rentalsParams := append(filterParams(),
		queryParam("page", "Page number (default: 1)", object{"type": "integer", "default": defaultPage}),
		queryParam("limit", "Rows per page (default: 100, max: 1000)", object{"type": "integer", "default": defaultLimit, "maximum": maxLimit}),
	)

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Bike Sharing Dashboard API",
			"description": "Filter the bike rental dataset and read its aggregates",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/rentals": object{
				"get": object{
					"summary":     "List filtered rentals",
					"description": "Rows of the dataset matching every selector, in dataset order",
					"parameters":  rentalsParams,
					"responses": withResponses(object{
						"description": "One page of matching rows",
						"content": jsonContent(object{
							"type": "object",
							"properties": object{
								"data":        object{"type": "array", "items": object{"type": "object", "additionalProperties": object{"type": "string"}}},
								"columns":     object{"type": "array", "items": object{"type": "string"}},
								"outcome":     object{"type": "string", "enum": []string{"unfiltered", "matched", "empty"}},
								"notice":      object{"type": "string"},
								"warnings":    object{"type": "array", "items": object{"type": "string"}},
								"total":       object{"type": "integer"},
								"page":        object{"type": "integer"},
								"limit":       object{"type": "integer"},
								"total_pages": object{"type": "integer"},
							},
						}),
					}),
				},
			},
			"/api/rentals/summary": object{
				"get": object{
					"summary":     "Aggregates of the filtered rentals",
					"description": "Total rentals, mean rentals per weather code and hour, daily totals and feature correlations. Aggregates are omitted when nothing matches.",
					"parameters":  filterParams(),
					"responses": withResponses(object{
						"description": "Summary of the matching rows",
						"content": jsonContent(object{
							"type": "object",
							"properties": object{
								"outcome":       object{"type": "string"},
								"row_count":     object{"type": "integer"},
								"notice":        object{"type": "string"},
								"total_rentals": object{"type": "number", "nullable": true},
								"weather_means": object{"type": "array", "items": groupMeanSchema},
								"hourly_means":  object{"type": "array", "items": groupMeanSchema},
								"daily_totals": object{"type": "array", "items": object{
									"type": "object",
									"properties": object{
										"date":  object{"type": "string", "format": "date-time"},
										"total": object{"type": "number"},
									},
								}},
								"correlations": object{"type": "array", "items": object{
									"type": "object",
									"properties": object{
										"feature":     object{"type": "string"},
										"correlation": object{"type": "number"},
										"samples":     object{"type": "integer"},
									},
								}},
								"warnings": object{"type": "array", "items": object{"type": "string"}},
							},
						}),
					}),
				},
			},
			"/api/rentals/options": object{
				"get": object{
					"summary": "Selector values",
					"responses": object{
						"200": object{"description": "Date bounds, seasons, weather codes and flag choices"},
					},
				},
			},
			"/dashboard": object{
				"get": object{
					"summary":    "Interactive HTML dashboard",
					"parameters": filterParams(),
					"responses": object{
						"200": object{"description": "HTML page", "content": object{"text/html": object{"schema": object{"type": "string"}}}},
					},
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": object{"description": "Dataset loaded and store reachable"},
						"503": object{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{"description": "Prometheus metrics in text format", "content": object{"text/plain": object{"schema": object{"type": "string"}}}},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI document
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
