// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package webview

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/siemens/pinginfo/types"

	"github.com/gorilla/websocket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("web presenter", func() {

	var server *Server
	var ts *httptest.Server

	BeforeEach(func() {
		server = NewServer(nil)
		ts = httptest.NewServer(server.Handler())
		DeferCleanup(func() {
			server.Close()
			ts.Close()
		})
	})

	snapshot := types.Snapshot{
		Round: 7,
		Start: time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC),
		Entries: []types.Entry{
			{
				Outcome: types.Outcome{
					Host:    "192.0.2.1",
					Status:  types.Reachable,
					Latency: 20 * time.Millisecond,
				},
				ResolvedName: "gw.example.org",
			},
			{
				Outcome: types.Outcome{Host: "192.0.2.2", Status: types.TimedOut},
			},
		},
	}

	It("serves the live page", func() {
		resp := Successful(http.Get(ts.URL + "/"))
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		body := Successful(io.ReadAll(resp.Body))
		Expect(string(body)).To(ContainSubstring("pinginfo"))
	})

	It("serves the latest snapshot as JSON", func() {
		resp := Successful(http.Get(ts.URL + "/api/snapshot"))
		defer resp.Body.Close()
		Expect(strings.TrimSpace(string(Successful(io.ReadAll(resp.Body))))).
			To(Equal("null"), "no round has been presented yet")

		server.Present(snapshot)

		resp2 := Successful(http.Get(ts.URL + "/api/snapshot"))
		defer resp2.Body.Close()
		var got types.Snapshot
		Expect(json.NewDecoder(resp2.Body).Decode(&got)).To(Succeed())
		Expect(got.Round).To(Equal(7))
		Expect(got.Entries).To(HaveLen(2))
		Expect(got.Entries[0].ResolvedName).To(Equal("gw.example.org"))
	})

	It("pushes snapshots to websocket clients", func() {
		wsurl := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsurl, nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		// allow the handler to register the fresh client before broadcasting.
		Eventually(func() int {
			server.mu.Lock()
			defer server.mu.Unlock()
			return len(server.clients)
		}).Within(2 * time.Second).Should(Equal(1))

		server.Present(snapshot)

		Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		var got map[string]any
		Expect(conn.ReadJSON(&got)).To(Succeed())
		Expect(got["round"]).To(BeEquivalentTo(7))
	})

	It("serializes greetings and broadcasts onto each websocket connection", func() {
		server.Present(snapshot)

		// Hammer broadcasts while clients keep connecting, so each fresh
		// client's greeting runs concurrently with the round broadcasts on
		// the very same connection; every received message must still be a
		// cleanly framed snapshot.
		stop := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						server.Present(snapshot)
						time.Sleep(100 * time.Microsecond)
					}
				}
			}()
		}
		defer func() {
			close(stop)
			wg.Wait()
		}()

		wsurl := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		for i := 0; i < 5; i++ {
			conn, _, err := websocket.DefaultDialer.Dial(wsurl, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			for n := 0; n < 10; n++ {
				var got map[string]any
				Expect(conn.ReadJSON(&got)).To(Succeed())
				Expect(got["round"]).To(BeEquivalentTo(7))
			}
			conn.Close()
		}
	})

	It("greets late websocket clients with the latest snapshot", func() {
		server.Present(snapshot)

		wsurl := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsurl, nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		var got map[string]any
		Expect(conn.ReadJSON(&got)).To(Succeed())
		Expect(got["round"]).To(BeEquivalentTo(7))
	})

})
