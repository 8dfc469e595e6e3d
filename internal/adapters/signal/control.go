package signal

func (ctl *Controller) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	_ = sendJSON(conn, resp)
}
