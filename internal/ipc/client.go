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

// Show asks the daemon to reveal its surface.
func (c *Client) Show() (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.client.Call("Limpet.Show", ShowRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Quit requests a sanctioned exit.
func (c *Client) Quit() (*QuitResponse, error) {
	var resp QuitResponse
	if err := c.client.Call("Limpet.Quit", QuitRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the controller snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Limpet.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskStart launches the background worker.
func (c *Client) TaskStart() (*TaskStartResponse, error) {
	var resp TaskStartResponse
	if err := c.client.Call("Limpet.TaskStart", TaskStartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskStatus reports the active or most recent run.
func (c *Client) TaskStatus() (*TaskStatusResponse, error) {
	var resp TaskStatusResponse
	if err := c.client.Call("Limpet.TaskStatus", TaskStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskHistory lists persisted runs, newest first.
func (c *Client) TaskHistory(limit int) (*TaskHistoryResponse, error) {
	var resp TaskHistoryResponse
	if err := c.client.Call("Limpet.TaskHistory", TaskHistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
