package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	callerr "stagecall/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func testServer(t *testing.T, register func(*gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return s
}

func TestJoinMeeting_Success(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, expiry)

	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/join", func(c *gin.Context) {
			var body map[string]string
			assert.NoError(t, c.BindJSON(&body))
			assert.Equal(t, "jt-1", body["join_token"])

			c.JSON(http.StatusOK, gin.H{
				"meeting": gin.H{"id": c.Param("id"), "title": "Interview", "status": "active", "current_participants": 2},
				"participant": gin.H{"name": "Ada", "email": "ada@example.com", "role": "candidate"},
				"transport_credentials": gin.H{
					"identity":       "42",
					"channel_name":   "meeting-1",
					"token":          token,
					"app_credential": "app-cred",
				},
				"meeting_url": "https://app.example.com/m/meeting-1",
			})
		})
	})

	resp, err := client.JoinMeeting(context.Background(), "meeting-1", ports.JoinRequest{JoinToken: "jt-1", Name: "Ada", Email: "ada@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, domain.Identity("42"), resp.Credentials.Identity)
	assert.Equal(t, "meeting-1", resp.Credentials.ChannelName)
	assert.Equal(t, "app-cred", resp.Credentials.AppCredential)
	assert.Equal(t, expiry.Unix(), resp.Credentials.ExpiresAt.Unix())
	assert.Equal(t, "Interview", resp.Meeting.Title)
}

func TestJoinMeeting_AuthFailureIsFatal(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/join", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
		})
	})

	_, err := client.JoinMeeting(context.Background(), "meeting-1", ports.JoinRequest{JoinToken: "stale"})
	assert.True(t, callerr.IsFatal(err))
	assert.True(t, errors.Is(err, domain.ErrAuth))
}

func TestJoinMeeting_CapacityFailure(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/join", func(c *gin.Context) {
			c.JSON(http.StatusConflict, gin.H{"error": "meeting full"})
		})
	})

	_, err := client.JoinMeeting(context.Background(), "meeting-1", ports.JoinRequest{JoinToken: "jt"})
	assert.True(t, errors.Is(err, domain.ErrMeetingFull))
}

func TestJoinMeeting_NotYetStartedCarriesInstant(t *testing.T) {
	scheduled := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/join", func(c *gin.Context) {
			c.JSON(http.StatusTooEarly, gin.H{
				"error":        "not started",
				"scheduled_at": scheduled.Format(time.RFC3339),
			})
		})
	})

	_, err := client.JoinMeeting(context.Background(), "meeting-1", ports.JoinRequest{JoinToken: "jt"})
	assert.True(t, callerr.IsFatal(err))

	var notStarted *domain.NotStartedError
	assert.True(t, errors.As(err, &notStarted))
	assert.True(t, notStarted.ScheduledAt.Equal(scheduled))
}

func TestGetScreenShareToken_FailureIsDegraded(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/screen-share-token", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token service down"})
		})
	})

	_, err := client.GetScreenShareToken(context.Background(), "meeting-1", ports.ScreenTokenRequest{
		JoinToken:      "jt",
		ScreenIdentity: "1000042",
	})
	assert.Equal(t, callerr.SeverityDegraded, callerr.SeverityOf(err))
}

func TestGetScreenShareToken_Success(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/screen-share-token", func(c *gin.Context) {
			var body map[string]string
			assert.NoError(t, c.BindJSON(&body))
			assert.Equal(t, "1000042", body["screen_share_identity"])
			c.JSON(http.StatusOK, gin.H{"transport_credentials": gin.H{"token": "screen-token"}})
		})
	})

	creds, err := client.GetScreenShareToken(context.Background(), "meeting-1", ports.ScreenTokenRequest{
		JoinToken:      "jt",
		ScreenIdentity: "1000042",
	})
	assert.NoError(t, err)
	assert.Equal(t, "screen-token", creds.Token)
	assert.Equal(t, domain.Identity("1000042"), creds.Identity)
}

func TestLeaveMeeting_FailureIsTransient(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.POST("/api/v1/meetings/:id/leave", func(c *gin.Context) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "nope"})
		})
	})

	err := client.LeaveMeeting(context.Background(), "meeting-1", "ada@example.com")
	assert.Equal(t, callerr.SeverityTransient, callerr.SeverityOf(err))
}

func TestListParticipants(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/meetings/:id/participants", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{
				{"identity": "7", "name": "Grace"},
				{"email": "bob@example.com", "name": "Bob"},
			})
		})
	})

	entries, err := client.ListParticipants(context.Background(), "meeting-1")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, domain.Identity("7"), entries[0].Identity)
	assert.Equal(t, "bob@example.com", entries[1].Email)
}

func TestGetMeetingInfo_ParsesScheduledAt(t *testing.T) {
	client := testServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/meetings/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"title":        "Panel",
				"status":       "scheduled",
				"scheduled_at": "2026-09-02T10:00:00Z",
			})
		})
	})

	meeting, err := client.GetMeetingInfo(context.Background(), "meeting-1", "jt")
	assert.NoError(t, err)
	assert.Equal(t, domain.MeetingScheduled, meeting.Status)
	assert.NotNil(t, meeting.ScheduledAt)
	assert.Equal(t, 10, meeting.ScheduledAt.UTC().Hour())
}

func TestUnreachableBackendIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, zaptest.NewLogger(t))
	_, err := client.ListParticipants(context.Background(), "meeting-1")
	assert.Equal(t, callerr.SeverityTransient, callerr.SeverityOf(err),
		"a connection failure carries no backend verdict and must stay retryable")
}

func TestListParticipants_RetriesPastDroppedConnection(t *testing.T) {
	hits := 0
	client := testServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/meetings/:id/participants", func(c *gin.Context) {
			hits++
			if hits == 1 {
				conn, _, err := c.Writer.Hijack()
				assert.NoError(t, err)
				conn.Close()
				return
			}
			c.JSON(http.StatusOK, []gin.H{{"identity": "7", "name": "Grace"}})
		})
	})

	entries, err := client.ListParticipants(context.Background(), "meeting-1")
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, hits)
}

func TestGetMeetingInfo_CachedAcrossWaitScreenPolls(t *testing.T) {
	hits := 0
	client := testServer(t, func(r *gin.Engine) {
		r.GET("/api/v1/meetings/:id", func(c *gin.Context) {
			hits++
			c.JSON(http.StatusOK, gin.H{"title": "Panel", "status": "active"})
		})
	})

	for i := 0; i < 3; i++ {
		meeting, err := client.GetMeetingInfo(context.Background(), "meeting-1", "jt")
		assert.NoError(t, err)
		assert.Equal(t, "Panel", meeting.Title)
	}
	assert.Equal(t, 1, hits)
}

func TestOpaqueTokenHasZeroExpiry(t *testing.T) {
	assert.True(t, tokenExpiry("not-a-jwt").IsZero())
}
