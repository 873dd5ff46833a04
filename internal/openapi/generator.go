// Package openapi generates the OpenAPI 3.1 description of the user
// management API served at /openapi.json.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the API description for the service rooted at baseURL.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "User Editor API",
			Description: "REST API for administering user accounts and their verified e-mail addresses.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["User"] = userSchema()
	doc.Components.Schemas["UserInput"] = userInputSchema()
	doc.Components.Schemas["UserList"] = userListSchema()
	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()

	doc.Paths = openapi3.NewPaths()
	addSessionPaths(doc)
	addUserPaths(doc)

	return doc
}

func addSessionPaths(doc *openapi3.T) {
	loginBody := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: "Credentials",
			Required:    true,
			Content: openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:     &openapi3.Types{"object"},
					Required: []string{"username", "password"},
					Properties: openapi3.Schemas{
						"username": stringProp(),
						"password": stringProp(),
					},
				},
			}),
		},
	}

	doc.Paths.Set("/rest/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Log in",
			Description: "Exchange a username and password for a bearer token.",
			OperationID: "create_session",
			Security:    &openapi3.SecurityRequirements{},
			RequestBody: loginBody,
			Responses: newResponses("200", "Session token", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"session_token": stringProp(),
						"token_type":    stringProp(),
						"expires_in":    intProp("int32"),
						"user_id":       intProp("int64"),
						"username":      stringProp(),
						"is_staff":      boolProp(),
					},
				},
			}),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Log out",
			OperationID: "delete_session",
			Responses: newResponses("200", "Session ended", &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
			}),
		},
	})
}

func addUserPaths(doc *openapi3.T) {
	userRef := openapi3.NewSchemaRef("#/components/schemas/User", nil)
	inputRef := openapi3.NewSchemaRef("#/components/schemas/UserInput", nil)
	listRef := openapi3.NewSchemaRef("#/components/schemas/UserList", nil)

	inputBody := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: "User attributes",
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(inputRef),
		},
	}

	doc.Paths.Set("/rest/users", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "List users",
			Description: "Returns a page of users ordered by display name. The reserved admin account is never included.",
			OperationID: "list_users",
			Parameters:  listQueryParameters(),
			Responses:   newResponses("200", "A page of users", listRef),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Create a user",
			OperationID: "create_user",
			RequestBody: inputBody,
			Responses:   newResponses("201", "The created user", userRef),
		},
	})

	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("userId").
			WithDescription("User ID.").
			WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}),
	}

	doc.Paths.Set("/rest/users/{userId}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Get a user",
			OperationID: "get_user",
			Responses:   newResponses("200", "The user", userRef),
		},
		Put: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Update a user",
			Description: "Omitted attributes are left unchanged. Submitting a new e-mail address records it as an unverified primary address; submitting a password replaces the stored hash.",
			OperationID: "update_user",
			RequestBody: inputBody,
			Responses:   newResponses("200", "The updated user", userRef),
		},
		Patch: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Partially update a user",
			OperationID: "patch_user",
			RequestBody: inputBody,
			Responses:   newResponses("200", "The updated user", userRef),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Delete a user",
			OperationID: "delete_user",
			Responses: newResponses("200", "Deletion confirmation", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"success": boolProp(),
						"message": stringProp(),
					},
				},
			}),
		},
	})

	doc.Paths.Set("/rest/users/meta", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"users"},
			Summary:     "Get collection metadata",
			Description: "Returns field display policy, form titles, and the caller's visible actions.",
			OperationID: "get_users_meta",
			Responses: newResponses("200", "Collection metadata", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"titles": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						"fields": &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type:  &openapi3.Types{"array"},
								Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
							},
						},
						"actions": &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type:  &openapi3.Types{"array"},
								Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							},
						},
					},
				},
			}),
		},
	})
}

func userSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":             intProp("int64"),
				"full_name":      stringProp(),
				"username":       stringProp(),
				"first_name":     stringProp(),
				"last_name":      stringProp(),
				"is_staff":       boolProp(),
				"is_superuser":   boolProp(),
				"is_active":      boolProp(),
				"email":          stringProp(),
				"email_verified": boolProp(),
			},
		},
	}
}

func userInputSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"object"},
			Description: "Attributes to set. Any omitted attribute is left unchanged on update; username and password are required on create.",
			Properties: openapi3.Schemas{
				"username":     stringProp(),
				"password":     stringProp(),
				"first_name":   stringProp(),
				"last_name":    stringProp(),
				"is_staff":     boolProp(),
				"is_superuser": boolProp(),
				"is_active":    boolProp(),
				"email":        stringProp(),
			},
		},
	}
}

func userListSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: openapi3.NewSchemaRef("#/components/schemas/User", nil),
					},
				},
				"meta": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"count":  intProp("int32"),
							"total":  intProp("int64"),
							"limit":  intProp("int32"),
							"offset": intProp("int32"),
						},
					},
				},
			},
		},
	}
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    intProp("int32"),
							"message": stringProp(),
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

func listQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("full_name").
				WithDescription("Case-insensitive substring match against the display name.").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("username").
				WithDescription("Exact username match.").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of records to return.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}
}

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for code, desc := range map[string]string{
		"400": "Bad request",
		"401": "Unauthorized",
		"403": "Forbidden",
		"404": "Not found",
		"500": "Internal server error",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	return responses
}

func stringProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intProp(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: format}}
}

func boolProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}
