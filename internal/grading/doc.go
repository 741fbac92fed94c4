// Package grading talks to the hosted multimodal model that grades a
// submission and defines the structured result it returns.
//
// The collaborator is consumed through the Grader interface. Client is the
// Gemini implementation: it is constructed explicitly with a Config and can
// be reconfigured at runtime, so no process-wide client exists. Every call
// is a single attempt; retrying is left to the user.
package grading
