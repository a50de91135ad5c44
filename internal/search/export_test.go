package search

// SetBaseURL points the client at a test server instead of the live API.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

var JoinLocation = joinLocation
