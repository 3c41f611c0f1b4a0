// Package api defines the JSON wire types of the tsvd HTTP interface and
// the small client helpers used by tsvctl and the integration tests.
//
// # Endpoints
//
//	GET    /health                  liveness check
//	GET    /info                    Info
//	GET    /tsv?pattern=P           NamesResponse of array names
//	GET    /tsv/{array}?pattern=P   ArrayResponse
//	DELETE /tsv/{array}             unset the whole array
//	GET    /tsv/{array}/{key}       ValueResponse, 404 if missing
//	PUT    /tsv/{array}/{key}       SetRequest
//	DELETE /tsv/{array}/{key}       unset one key
//	POST   /tsv/{array}/{key}/incr   IncrRequest, returns ValueResponse
//	POST   /tsv/{array}/{key}/append AppendRequest, returns ValueResponse
//	POST   /tsv/{array}/{key}/lappend AppendRequest, returns ValueResponse
//	GET    /bind                    BindingsResponse
//	POST   /bind/{array}            BindRequest
//	DELETE /bind/{array}            unbind
//	POST   /jobs                    JobRequest, returns JobResponse
//	GET    /jobs/{id}?wait=1        JobResult
//
// Errors are returned as ErrorResponse bodies with a matching status code.
// Clients see them as *StatusError.
package api
