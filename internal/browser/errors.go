package browser

import "fmt"

// ConnectionError means the remote browser-automation endpoint is not
// configured or could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("browser endpoint is not configured: %v", e.Err)
	}
	return fmt.Sprintf("failed to connect to remote browser at %q: %v. "+
		"Ensure the browser endpoint is up and reachable", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ScriptExecutionError means a script raised inside the browser page.
type ScriptExecutionError struct {
	Err error
}

func (e *ScriptExecutionError) Error() string {
	return fmt.Sprintf("in-page script execution failed: %v", e.Err)
}

func (e *ScriptExecutionError) Unwrap() error { return e.Err }
