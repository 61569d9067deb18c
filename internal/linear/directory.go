package linear

import (
	"context"
	"fmt"
)

const teamsQuery = `query {
  teams(first: 100) {
    nodes { id name key }
  }
}`

const projectsQuery = `query {
  projects(first: 100) {
    nodes { id name }
  }
}`

// Team is a directory entry for a Linear team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Project is a directory entry for a Linear project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type teamsResponse struct {
	Data *struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type projectsResponse struct {
	Data *struct {
		Projects struct {
			Nodes []Project `json:"nodes"`
		} `json:"projects"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Teams lists the workspace's teams. The result changes rarely, so callers
// wrap this in the TTL-cached directory lookup.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp teamsResponse
	if err := c.query(ctx, teamsQuery, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("linear API returned errors: %s", joinErrors(resp.Errors))
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Teams.Nodes, nil
}

// Projects lists the workspace's projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp projectsResponse
	if err := c.query(ctx, projectsQuery, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("linear API returned errors: %s", joinErrors(resp.Errors))
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Projects.Nodes, nil
}
