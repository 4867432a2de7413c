package types

type AccessRequest struct {
	CardCode string `json:"card_code"`
}

type AccessResponse struct {
	OK         bool   `json:"ok"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	DeviceID   string `json:"device_id"`
	FrameID    string `json:"frame_id,omitempty"`
	ServerTime string `json:"server_time"`
}
