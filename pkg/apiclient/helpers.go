package apiclient

import "fmt"

// Generic helpers reducing repetitive HTTP boilerplate across the BARD
// command methods. Each wraps Client.get/post/delete with type-safe
// generics for response decoding.

func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func listResources[T any](c *Client, path string) ([]T, error) {
	var results []T
	if err := c.get(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func postAction(c *Client, path string, body any) error {
	return c.post(path, body, nil)
}

func deleteAction(c *Client, path string) error {
	return c.delete(path, nil)
}

func postActionResult[T any](c *Client, path string, body any) (T, error) {
	var result T
	err := c.post(path, body, &result)
	return result, err
}

func deleteActionResult[T any](c *Client, path string) (T, error) {
	var result T
	err := c.delete(path, &result)
	return result, err
}

// resourcePath builds a resource path by formatting a path template
// with the given arguments.
func resourcePath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
