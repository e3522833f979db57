package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilient-client/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		DescribeTable("accepts valid addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, httpserver.Settings{})
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.Addr()).To(Equal(addr))
			},
			Entry("host name", "localhost:9999"),
			Entry("IP address", "127.0.0.1:9999"),
			Entry("port only", ":9999"),
		)

		DescribeTable("rejects invalid addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, httpserver.Settings{})
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			},
			Entry("too many colons", "invalid:host:port"),
			Entry("missing port", "localhost"),
			Entry("empty port", "localhost:"),
			Entry("bad host", "bad_host!:8080"),
		)
	})

	Context("server lifecycle", func() {
		var testServer *httpserver.Server

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
			}
		})

		It("serves a gin engine", func() {
			gin.SetMode(gin.TestMode)
			engine := gin.New()
			engine.GET("/ping", func(c *gin.Context) {
				c.String(http.StatusOK, "pong")
			})

			var err error
			testServer, err = httpserver.New("127.0.0.1:19999", engine, httpserver.Settings{})
			Expect(err).NotTo(HaveOccurred())

			go func() {
				_ = testServer.Start()
			}()

			Eventually(func() (string, error) {
				resp, err := http.Get("http://127.0.0.1:19999/ping")
				if err != nil {
					return "", err
				}
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				return string(body), err
			}).WithTimeout(2 * time.Second).Should(Equal("pong"))
		})

		It("returns nil from Start after a graceful shutdown", func() {
			var err error
			testServer, err = httpserver.New("127.0.0.1:19998", noop, httpserver.Settings{ShutdownTimeout: time.Second})
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				done <- testServer.Start()
			}()
			time.Sleep(100 * time.Millisecond)

			Expect(testServer.Shutdown(context.Background())).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
