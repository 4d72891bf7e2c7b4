package sdk

import (
	"net/url"
)

func (c *Client) ListServers() ([]Server, error) {
	var servers []Server
	err := c.get("/api/servers", &servers)
	return servers, err
}

func (c *Client) GetServer(name string) (*ServerDetail, error) {
	var detail ServerDetail
	err := c.get("/api/servers/"+url.PathEscape(name), &detail)
	return &detail, err
}

func (c *Client) ServerLogs(name string) ([]Event, error) {
	var events []Event
	err := c.get("/api/servers/"+url.PathEscape(name)+"/logs", &events)
	return events, err
}

// ListPlayers returns every live session, or only those on server when it
// is not empty.
func (c *Client) ListPlayers(server string) ([]Session, error) {
	path := "/api/players"
	if server != "" {
		path += "?server=" + url.QueryEscape(server)
	}
	var sessions []Session
	err := c.get(path, &sessions)
	return sessions, err
}

func (c *Client) GetPlayer(uuid string) (*Player, error) {
	var p Player
	err := c.get("/api/players/"+url.PathEscape(uuid), &p)
	return &p, err
}

func (c *Client) LastSeen(uuid string) (*LastSeen, error) {
	var ls LastSeen
	err := c.get("/api/players/"+url.PathEscape(uuid)+"/last-seen", &ls)
	return &ls, err
}

func (c *Client) Ban(req BanRequest) (*Ban, error) {
	var b Ban
	err := c.post("/api/bans/ban", req, &b)
	return &b, err
}

func (c *Client) Unban(uuid, by string) error {
	return c.post("/api/bans/unban", map[string]string{"uuid": uuid, "by": by}, nil)
}

func (c *Client) ListBans() ([]Ban, error) {
	var bans []Ban
	err := c.get("/api/bans", &bans)
	return bans, err
}

func (c *Client) IsBanned(uuid string) (*BanStatus, error) {
	var st BanStatus
	err := c.get("/api/bans/"+url.PathEscape(uuid), &st)
	return &st, err
}

func (c *Client) BanHistory(uuid string) ([]BanHistoryEntry, error) {
	var entries []BanHistoryEntry
	err := c.get("/api/bans/"+url.PathEscape(uuid)+"/history", &entries)
	return entries, err
}

func (c *Client) RCONPlayers() (*RCONPlayers, error) {
	var res RCONPlayers
	err := c.get("/api/rcon/players", &res)
	return &res, err
}

func (c *Client) Status() (*Status, error) {
	var st Status
	err := c.get("/api/status", &st)
	return &st, err
}
