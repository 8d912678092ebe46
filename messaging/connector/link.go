package connector

import (
	"golang.org/x/net/websocket"
)

type frame struct {
	text    bool
	payload []byte
}

type link interface {
	read() (frame, error)
	write(payload []byte) error
	close() error
}

// frameCodec hands over raw payloads and keeps the frame type so binary frames can be refused.
var frameCodec = websocket.Codec{
	Marshal: func(v interface{}) ([]byte, byte, error) {
		return v.([]byte), websocket.TextFrame, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v interface{}) error {
		f := v.(*frame)
		f.text = payloadType == websocket.TextFrame
		f.payload = data
		return nil
	},
}

type wsLink struct {
	conn *websocket.Conn
}

func dialWebsocket(url, origin string) (link, error) {
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, err
	}
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &wsLink{conn: conn}, nil
}

func (l *wsLink) read() (frame, error) {
	var f frame
	err := frameCodec.Receive(l.conn, &f)
	return f, err
}

func (l *wsLink) write(payload []byte) error {
	return frameCodec.Send(l.conn, payload)
}

func (l *wsLink) close() error {
	return l.conn.Close()
}
