// Package api exposes the sandbox runner over HTTP.
//
// POST /run accepts {"image", "limits": {"maxExecutionTime", "maxOutputSize"},
// "payload"} and answers with the JSON value the container wrote to stdout,
// or 400 with {"error": code, "message": text}.
package api
