package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Satchel.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Satchel.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Satchel.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync triggers an immediate queue drain.
func (c *Client) Sync(retryFailed bool) (*SyncResponse, error) {
	var resp SyncResponse
	req := SyncRequest{RetryFailed: retryFailed}
	if err := c.client.Call("Satchel.Sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Satchel.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStats returns aggregate queue counts.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var resp QueueStatsResponse
	if err := c.client.Call("Satchel.QueueStats", QueueStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single queue item.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Satchel.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes completed items from the queue.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Satchel.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry resets failed items and drains them again.
func (c *Client) QueueRetry() (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.client.Call("Satchel.QueueRetry", QueueRetryRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes specific queue items by id.
func (c *Client) QueueRemove(ids []string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	req := QueueRemoveRequest{IDs: ids}
	if err := c.client.Call("Satchel.QueueRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import stages a roster import through the daemon.
func (c *Client) Import(players []map[string]any) (*ImportResponse, error) {
	var resp ImportResponse
	req := ImportRequest{Players: players}
	if err := c.client.Call("Satchel.Import", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Satchel.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Satchel.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
