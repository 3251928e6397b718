package bridge

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/vshulcz/dslbridge/internal/adapters/telnet"
	"github.com/vshulcz/dslbridge/internal/ports"
)

// poll is what the fake modem answers to one ifconfig/lsg pair.
type poll struct {
	lineState string
	rx, tx    uint32
	// drop closes the connection after reading ifconfig instead of answering.
	drop bool
	// garbage replaces the ifconfig output.
	garbage bool
}

// fakeModem plays the device side of one connection.
type fakeModem struct {
	polls []poll
	mu    sync.Mutex
	creds []string
}

func (m *fakeModem) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	readLine := func() (string, bool) {
		line, err := r.ReadString('\n')
		return strings.TrimRight(line, "\r\n"), err == nil
	}

	if _, err := conn.Write([]byte("\r\nALL0333B login: ")); err != nil {
		return
	}
	user, ok := readLine()
	if !ok {
		return
	}
	if _, err := conn.Write([]byte(user + "\r\nPassword: ")); err != nil {
		return
	}
	pass, ok := readLine()
	if !ok {
		return
	}
	m.mu.Lock()
	m.creds = append(m.creds, user+":"+pass)
	m.mu.Unlock()
	if _, err := conn.Write([]byte("\r\n\r\nBusyBox v1.00 built-in shell (msh)\r\n# ")); err != nil {
		return
	}

	for _, p := range m.polls {
		cmd, ok := readLine()
		if !ok || cmd != "ifconfig" {
			return
		}
		if p.drop {
			return
		}
		out := ifconfigOutput(p.rx, p.tx)
		if p.garbage {
			out = "ifconfig: not found\r\n"
		}
		if _, err := conn.Write([]byte("ifconfig\r\n" + out + "# ")); err != nil {
			return
		}

		cmd, ok = readLine()
		if !ok || cmd != "dsl_cpe_pipe.sh lsg" {
			return
		}
		if _, err := conn.Write([]byte(cmd + "\r\nnReturn=0 nLineState=" + p.lineState + "\r\n# ")); err != nil {
			return
		}
	}
	// Out of script: swallow input without answering, like a wedged shell.
	for {
		if _, ok := readLine(); !ok {
			return
		}
	}
}

func (m *fakeModem) logins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.creds...)
}

func ifconfigOutput(rx, tx uint32) string {
	return "lo        Link encap:Local Loopback\r\n" +
		"          RX bytes:1 (1.0 B)  TX bytes:1 (1.0 B)\r\n" +
		"\r\n" +
		"nas0      Link encap:Ethernet  HWaddr 00:0F:C9:0C:81:E4\r\n" +
		"          UP BROADCAST RUNNING MULTICAST  MTU:1500  Metric:1\r\n" +
		fmt.Sprintf("          RX bytes:%d (0.0 KiB)  TX bytes:%d (0.0 KiB)\r\n", rx, tx) +
		"\r\n"
}

// modemDialer hands out one scripted modem per dial over net.Pipe.
type modemDialer struct {
	mu     sync.Mutex
	modems []*fakeModem
	dials  int
}

var _ ports.DeviceDialer = (*modemDialer)(nil)

func (d *modemDialer) Dial(context.Context, string) (ports.DeviceConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials >= len(d.modems) {
		d.dials++
		return nil, fmt.Errorf("dial %d: connection refused", d.dials)
	}
	m := d.modems[d.dials]
	d.dials++

	client, server := net.Pipe()
	go m.serve(server)
	return telnet.NewConn(client, 0), nil
}

func (d *modemDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
