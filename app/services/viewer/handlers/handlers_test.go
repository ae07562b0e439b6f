package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/cryptoverse/app/services/viewer/handlers"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Index(t *testing.T) {
	t.Log("Given the need to serve the ledger viewer.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen pointed at a node.", testID)
		{
			app, err := handlers.UIMux("test", make(chan os.Signal, 1), zap.NewNop().Sugar(), "https://node.example.com/")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould construct the mux: %s", failed, testID, err)
			}

			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 200: got %d", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 200.", success, testID)

			body := w.Body.String()
			if !strings.Contains(body, "wss:") || !strings.Contains(body, "node.example.com") || !strings.Contains(body, "kinds=starlog,event") {
				t.Fatalf("\t%s\tTest %d:\tShould follow the node feed:\n%s", failed, testID, body)
			}
			t.Logf("\t%s\tTest %d:\tShould follow the node feed.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the node url is not valid.", testID)
		{
			if _, err := handlers.UIMux("test", make(chan os.Signal, 1), zap.NewNop().Sugar(), "node"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to start.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to start.", success, testID)
		}
	}
}
