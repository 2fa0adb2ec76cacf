package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// WSConnKeeper implements connection management.
// A client subscribes by writing a job ID into the socket
type WSConnKeeper struct {
	idConnectionMap map[string]map[WsConn]struct{}
	connectionIDMap map[WsConn]string
	mapLock         sync.Mutex
	timeOut         time.Duration
}

// NewWSConnKeeper creates manager
func NewWSConnKeeper() *WSConnKeeper {
	res := &WSConnKeeper{}
	res.idConnectionMap = make(map[string]map[WsConn]struct{})
	res.connectionIDMap = make(map[WsConn]string)
	res.timeOut = time.Minute * 30 // max time limit for a connection
	return res
}

// HandleConnection loops until connection active and saves connection with provided ID as key
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.deleteConnection(conn)
	defer conn.Close()
	readCh := make(chan string)
	go func() {
		defer close(readCh)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Debug().Err(err).Msg("ws read failed")
				return
			}
			msg := strings.TrimSpace(string(message))
			if msg != "" {
				readCh <- msg
			}
		}
	}()

	ta := time.After(kp.timeOut)
	for {
		select {
		case <-ta:
			goapp.Log.Debug().Msg("ws conn timeouted")
			return nil
		case msg, ok := <-readCh:
			if !ok {
				return nil
			}
			kp.saveConnection(conn, msg)
			ta = time.After(kp.timeOut)
		}
	}
}

func (kp *WSConnKeeper) deleteConnection(conn WsConn) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	kp.deleteConnectionNoSync(conn)
}

func (kp *WSConnKeeper) deleteConnectionNoSync(conn WsConn) {
	id, found := kp.connectionIDMap[conn]
	if found {
		conns, found := kp.idConnectionMap[id]
		if found {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.idConnectionMap, id)
			}
		}
	}
	delete(kp.connectionIDMap, conn)
}

func (kp *WSConnKeeper) saveConnection(conn WsConn, id string) {
	goapp.Log.Debug().Str("ID", id).Msg("ws subscribe")
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	kp.deleteConnectionNoSync(conn)
	kp.connectionIDMap[conn] = id
	conns, found := kp.idConnectionMap[id]
	if !found {
		conns = map[WsConn]struct{}{}
		kp.idConnectionMap[id] = conns
	}
	conns[conn] = struct{}{}
}

// GetConnections returns saved connections by provided id
func (kp *WSConnKeeper) GetConnections(id string) ([]WsConn, bool) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	cm, found := kp.idConnectionMap[id]
	if !found {
		return nil, false
	}
	res := make([]WsConn, 0, len(cm))
	for c := range cm {
		res = append(res, c)
	}
	return res, true
}
