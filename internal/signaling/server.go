package signaling

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cornelk/hashmap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// ClientPath serves the browser caller's script.
const ClientPath = "/client.js"

//go:embed web
var webFS embed.FS

// DefaultMaxBodyBytes caps the size of a posted offer.
const DefaultMaxBodyBytes = 1 << 20

// PeerFactory creates the answering PeerConnection for one offer.
type PeerFactory func() (*webrtc.PeerConnection, error)

// PrepareFunc runs on a fresh PeerConnection before the offer is applied.
// It is where media handling (tracks, OnTrack) is attached.
type PrepareFunc func(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) error

// ServerOptions configures a Server.
type ServerOptions struct {
	NewPeer      PeerFactory
	Prepare      PrepareFunc
	MaxBodyBytes int64
}

// Server is the answering side of the offer/answer exchange. Every offer
// gets its own PeerConnection, kept until it fails, closes, or the server
// shuts down.
type Server struct {
	opts    ServerOptions
	peers   *hashmap.Map[string, *webrtc.PeerConnection]
	router  chi.Router
	httpSrv *http.Server
}

// NewServer creates a Server and its routes.
func NewServer(opts ServerOptions) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		opts:  opts,
		peers: hashmap.New[string, *webrtc.PeerConnection](),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Get("/", serveWeb("web/index.html"))
	r.Get(ClientPath, serveWeb("web/client.js"))
	r.With(middleware.RequestSize(opts.MaxBodyBytes)).Post(OfferPath, s.handleOffer)
	s.router = r
	s.httpSrv = &http.Server{Handler: r}

	return s
}

// Handler returns the HTTP handler serving the signaling routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts HTTP connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	util.LogInfo("signaling server listening on %s", l.Addr())

	if err := s.httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("signaling server failed: %w", err)
	}
	return nil
}

// Peers returns the number of live PeerConnections.
func (s *Server) Peers() int {
	return s.peers.Len()
}

// Shutdown stops accepting requests and closes every PeerConnection.
func (s *Server) Shutdown(ctx context.Context) error {
	errs := []error{s.httpSrv.Shutdown(ctx)}

	s.peers.Range(func(id string, pc *webrtc.PeerConnection) bool {
		errs = append(errs, pc.Close())
		s.peers.Del(id)
		return true
	})
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// serveWeb serves one embedded file of the browser caller.
func serveWeb(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, webFS, name)
	}
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var desc Description
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "offer too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("invalid offer: %v", err), http.StatusBadRequest)
		return
	}

	offer, err := desc.SessionDescription()
	if err != nil || offer.Type != webrtc.SDPTypeOffer {
		http.Error(w, fmt.Sprintf("expected an offer, got type %q", desc.Type), http.StatusBadRequest)
		return
	}

	answer, err := s.answer(r.Context(), offer)
	if err != nil {
		util.LogError("failed to answer offer: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(FromSessionDescription(answer)); err != nil {
		util.LogWarning("failed to write answer: %v", err)
	}
}

// answer creates a PeerConnection for offer and returns the gathered answer.
func (s *Server) answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	pc, err := s.opts.NewPeer()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	id := uuid.NewString()
	s.peers.Set(id, pc)
	util.LogInfo("peer %s created (%d live)", id, s.peers.Len())

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogInfo("peer %s connection state: %s", id, state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			s.drop(id, pc)
		case webrtc.PeerConnectionStateClosed:
			s.peers.Del(id)
		}
	})

	fail := func(step string, err error) (webrtc.SessionDescription, error) {
		s.drop(id, pc)
		return webrtc.SessionDescription{}, fmt.Errorf("%s: %w", step, err)
	}

	if s.opts.Prepare != nil {
		if err := s.opts.Prepare(pc, offer); err != nil {
			return fail("prepare", err)
		}
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("SetRemoteDescription", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("CreateAnswer", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("SetLocalDescription", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return fail("gathering", ctx.Err())
	}

	return *pc.LocalDescription(), nil
}

// drop removes a peer from the registry and closes it off the pion callback
// goroutine.
func (s *Server) drop(id string, pc *webrtc.PeerConnection) {
	if !s.peers.Del(id) {
		return
	}
	go func() {
		if err := pc.Close(); err != nil {
			util.LogDebug("peer %s close: %v", id, err)
		}
	}()
}
