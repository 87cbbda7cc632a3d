package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"proconnect/internal/audit"
	"proconnect/internal/connection/models"
	"proconnect/internal/connection/service/mocks"
	participantmodels "proconnect/internal/participant/models"
	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
	"proconnect/pkg/platform/sentinel"
	"proconnect/pkg/requestcontext"
)

var (
	consultant1 = domain.ParticipantRef{Kind: domain.KindConsultant, ID: 1}
	client5     = domain.ParticipantRef{Kind: domain.KindClient, ID: 5}
	client9     = domain.ParticipantRef{Kind: domain.KindClient, ID: 9}

	fixedNow = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
)

type ServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockStore     *mocks.MockStore
	mockDirectory *mocks.MockDirectory
	mockPublisher *mocks.MockAuditPublisher
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockDirectory = mocks.NewMockDirectory(s.ctrl)
	s.mockPublisher = mocks.NewMockAuditPublisher(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(
		s.mockStore,
		s.mockDirectory,
		WithLogger(logger),
		WithAuditPublisher(s.mockPublisher),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// ctx pins the request time so every timestamp assertion is exact.
func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), fixedNow)
}

func pendingConnection(id int64) *models.Connection {
	created := fixedNow.Add(-time.Hour)
	return &models.Connection{
		ID:          id,
		Requester:   consultant1,
		Receiver:    client5,
		Status:      models.StatusPending,
		RequestDate: created,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func acceptedConnection(id int64) *models.Connection {
	conn := pendingConnection(id)
	responded := fixedNow.Add(-30 * time.Minute)
	conn.Status = models.StatusAccepted
	conn.ResponseDate = &responded
	conn.UpdatedAt = responded
	return conn
}

// =============================================================================
// Create
// =============================================================================

func (s *ServiceSuite) TestCreate_Succeeds() {
	s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
	s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(true, nil)
	s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
		Return(nil, sentinel.ErrNotFound)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, conn *models.Connection) error {
			conn.ID = 42
			return nil
		})

	var captured audit.Event
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			captured = event
			return nil
		})

	conn, err := s.service.Create(s.ctx(), consultant1, client5)

	s.Require().NoError(err)
	s.Equal(int64(42), conn.ID)
	s.Equal(models.StatusPending, conn.Status)
	s.True(conn.RequestDate.Equal(fixedNow))
	s.Nil(conn.ResponseDate)

	s.Equal(audit.ActionRequested, captured.Action)
	s.Equal(int64(42), captured.ConnectionID)
	s.Equal(consultant1, captured.Actor)
	s.Equal(client5, captured.Counterpart)
	s.Equal("pending", captured.Status)
	s.True(captured.Timestamp.Equal(fixedNow))
}

func (s *ServiceSuite) TestCreate_Preconditions() {
	s.Run("unknown requester is not found", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(false, nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown receiver is not found", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
		s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(false, nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("directory failure is storage unavailable", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).
			Return(false, sentinel.ErrUnavailable)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})

	s.Run("self connection is rejected after both sides resolve", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil).Times(2)

		_, err := s.service.Create(s.ctx(), consultant1, consultant1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSelfConnection))
	})

	s.Run("existing pending request blocks with duplicate_pending", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
		s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(true, nil)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(pendingConnection(7), nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePending))
	})

	s.Run("existing accepted connection blocks with already_connected", func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
		s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(true, nil)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(acceptedConnection(7), nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyConnected))
	})
}

func (s *ServiceSuite) TestCreate_LostRace() {
	expectHealthyPreconditions := func() {
		s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
		s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(true, nil)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(nil, sentinel.ErrNotFound)
	}

	s.Run("index conflict re-reads pending winner as duplicate_pending", func() {
		expectHealthyPreconditions()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(pendingConnection(7), nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePending))
	})

	s.Run("index conflict re-reads accepted winner as already_connected", func() {
		expectHealthyPreconditions()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(acceptedConnection(7), nil)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyConnected))
	})

	s.Run("vanished winner falls back to duplicate_pending", func() {
		expectHealthyPreconditions()
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Create(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePending))
	})
}

func (s *ServiceSuite) TestCreate_AuditFailureDoesNotFailMutation() {
	s.mockDirectory.EXPECT().Exists(gomock.Any(), consultant1).Return(true, nil)
	s.mockDirectory.EXPECT().Exists(gomock.Any(), client5).Return(true, nil)
	s.mockStore.EXPECT().FindActiveBetween(gomock.Any(), consultant1, client5).
		Return(nil, sentinel.ErrNotFound)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(audit.ErrBufferFull)

	_, err := s.service.Create(s.ctx(), consultant1, client5)
	s.NoError(err, "the trail is advisory; a dropped event never fails the mutation")
}

// =============================================================================
// UpdateStatus
// =============================================================================

func (s *ServiceSuite) TestUpdateStatus_ReceiverAccepts() {
	s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)
	s.mockStore.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, conn *models.Connection) error {
			s.Equal(models.StatusAccepted, conn.Status)
			s.Require().NotNil(conn.ResponseDate)
			s.True(conn.ResponseDate.Equal(fixedNow))
			s.True(conn.UpdatedAt.Equal(fixedNow))
			return nil
		})

	var captured audit.Event
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			captured = event
			return nil
		})

	conn, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusAccepted)

	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, conn.Status)
	s.Equal(audit.ActionAccepted, captured.Action)
	s.Equal(client5, captured.Actor)
	s.Equal(consultant1, captured.Counterpart)
}

func (s *ServiceSuite) TestUpdateStatus_ReceiverRejects() {
	s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)
	s.mockStore.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Return(nil)
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	conn, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusRejected)

	s.Require().NoError(err)
	s.Equal(models.StatusRejected, conn.Status)
	s.Require().NotNil(conn.ResponseDate)
	s.True(conn.ResponseDate.Equal(fixedNow))
}

func (s *ServiceSuite) TestUpdateStatus_EitherPartyRemoves() {
	original := acceptedConnection(7)
	respondedAt := *original.ResponseDate

	s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(original, nil)
	s.mockStore.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Return(nil)

	var captured audit.Event
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			captured = event
			return nil
		})

	// The requester may remove; acceptance already happened.
	conn, err := s.service.UpdateStatus(s.ctx(), consultant1, 7, models.StatusRemoved)

	s.Require().NoError(err)
	s.Equal(models.StatusRemoved, conn.Status)
	s.Require().NotNil(conn.ResponseDate)
	s.True(conn.ResponseDate.Equal(respondedAt), "removal keeps the original response date")
	s.True(conn.UpdatedAt.Equal(fixedNow))
	s.Equal(audit.ActionRemoved, captured.Action)
	s.Equal(client5, captured.Counterpart)
}

func (s *ServiceSuite) TestUpdateStatus_Guards() {
	s.Run("missing connection is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(404)).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UpdateStatus(s.ctx(), client5, 404, models.StatusAccepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("stranger is forbidden before any rule check", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)

		_, err := s.service.UpdateStatus(s.ctx(), client9, 7, models.StatusAccepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("requester cannot answer their own request", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)

		_, err := s.service.UpdateStatus(s.ctx(), consultant1, 7, models.StatusAccepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("pending cannot be removed", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)

		_, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusRemoved)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("terminal record rejects further transitions", func() {
		removed := acceptedConnection(7)
		removed.Status = models.StatusRemoved
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(removed, nil)

		_, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusAccepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("pending is never a transition target", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(acceptedConnection(7), nil)

		_, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusPending)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("store write failure is storage unavailable", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).
			Return(sentinel.ErrUnavailable)

		_, err := s.service.UpdateStatus(s.ctx(), client5, 7, models.StatusAccepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})
}

// =============================================================================
// Get
// =============================================================================

func (s *ServiceSuite) TestGet() {
	s.Run("party sees the connection with the counterpart enriched", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)
		s.mockDirectory.EXPECT().DisplayInfoBatch(gomock.Any(), []domain.ParticipantRef{client5}).
			Return(map[domain.ParticipantRef]*participantmodels.DisplayInfo{
				client5: {FullName: "Dana Fox", Email: "dana@example.com", CompanyName: "Fox Ltd"},
			})

		view, err := s.service.Get(s.ctx(), consultant1, 7)

		s.Require().NoError(err)
		s.Equal(int64(7), view.ID)
		s.Equal(client5, view.CounterpartRef)
		s.Require().NotNil(view.Counterpart)
		s.Equal("Dana Fox", view.Counterpart.FullName)
	})

	s.Run("enrichment miss still serves the connection", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)
		s.mockDirectory.EXPECT().DisplayInfoBatch(gomock.Any(), []domain.ParticipantRef{client5}).
			Return(map[domain.ParticipantRef]*participantmodels.DisplayInfo{})

		view, err := s.service.Get(s.ctx(), consultant1, 7)

		s.Require().NoError(err)
		s.Equal(client5, view.CounterpartRef)
		s.Nil(view.Counterpart)
	})

	s.Run("stranger is forbidden", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(7)).Return(pendingConnection(7), nil)

		_, err := s.service.Get(s.ctx(), client9, 7)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing connection is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), int64(404)).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Get(s.ctx(), consultant1, 404)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// List
// =============================================================================

func (s *ServiceSuite) TestList() {
	s.Run("normalizes the page and enriches counterparts per viewer", func() {
		outgoing := pendingConnection(1) // consultant1 -> client5
		incoming := &models.Connection{
			ID:          2,
			Requester:   client9,
			Receiver:    consultant1,
			Status:      models.StatusAccepted,
			RequestDate: fixedNow.Add(-2 * time.Hour),
			CreatedAt:   fixedNow.Add(-2 * time.Hour),
			UpdatedAt:   fixedNow.Add(-time.Hour),
		}

		normalized := models.Page{
			Limit:     models.DefaultPageLimit,
			Offset:    0,
			SortBy:    models.SortByRequestDate,
			SortOrder: models.SortDesc,
		}
		s.mockStore.EXPECT().List(gomock.Any(), consultant1, models.ListFilter{}, normalized).
			Return([]*models.Connection{outgoing, incoming}, int64(2), nil)
		s.mockDirectory.EXPECT().DisplayInfoBatch(gomock.Any(), []domain.ParticipantRef{client5, client9}).
			Return(map[domain.ParticipantRef]*participantmodels.DisplayInfo{
				client5: {FullName: "Dana Fox"},
			})

		views, total, err := s.service.List(s.ctx(), consultant1, models.ListFilter{}, models.Page{})

		s.Require().NoError(err)
		s.Equal(int64(2), total)
		s.Require().Len(views, 2)

		s.Equal(client5, views[0].CounterpartRef)
		s.Require().NotNil(views[0].Counterpart)
		s.Equal("Dana Fox", views[0].Counterpart.FullName)

		s.Equal(client9, views[1].CounterpartRef)
		s.Nil(views[1].Counterpart, "failed lookups degrade to an empty counterpart")
	})

	s.Run("store failure is storage unavailable", func() {
		s.mockStore.EXPECT().List(gomock.Any(), consultant1, gomock.Any(), gomock.Any()).
			Return(nil, int64(0), sentinel.ErrUnavailable)

		_, _, err := s.service.List(s.ctx(), consultant1, models.ListFilter{}, models.Page{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})
}

// =============================================================================
// StatusBetween
// =============================================================================

func (s *ServiceSuite) TestStatusBetween() {
	s.Run("no history means connectable", func() {
		s.mockStore.EXPECT().FindLatestBetween(gomock.Any(), consultant1, client5).
			Return(nil, sentinel.ErrNotFound)

		summary, err := s.service.StatusBetween(s.ctx(), consultant1, client5)

		s.Require().NoError(err)
		s.Equal(models.StatusNone, summary.Status)
		s.True(summary.CanConnect)
		s.Nil(summary.Connection)
	})

	s.Run("active statuses block a new request", func() {
		for _, conn := range []*models.Connection{pendingConnection(7), acceptedConnection(7)} {
			s.mockStore.EXPECT().FindLatestBetween(gomock.Any(), consultant1, client5).
				Return(conn, nil)

			summary, err := s.service.StatusBetween(s.ctx(), consultant1, client5)

			s.Require().NoError(err)
			s.Equal(conn.Status.String(), summary.Status)
			s.False(summary.CanConnect)
			s.Equal(conn, summary.Connection)
		}
	})

	s.Run("terminal statuses allow a fresh request", func() {
		for _, status := range []models.Status{models.StatusRejected, models.StatusRemoved} {
			conn := pendingConnection(7)
			conn.Status = status
			responded := fixedNow.Add(-10 * time.Minute)
			conn.ResponseDate = &responded

			s.mockStore.EXPECT().FindLatestBetween(gomock.Any(), consultant1, client5).
				Return(conn, nil)

			summary, err := s.service.StatusBetween(s.ctx(), consultant1, client5)

			s.Require().NoError(err)
			s.Equal(status.String(), summary.Status)
			s.True(summary.CanConnect)
		}
	})

	s.Run("a participant paired with itself is never connectable", func() {
		summary, err := s.service.StatusBetween(s.ctx(), client5, client5)

		s.Require().NoError(err)
		s.Equal(models.StatusNone, summary.Status)
		s.False(summary.CanConnect)
	})

	s.Run("store failure is storage unavailable", func() {
		s.mockStore.EXPECT().FindLatestBetween(gomock.Any(), consultant1, client5).
			Return(nil, sentinel.ErrUnavailable)

		_, err := s.service.StatusBetween(s.ctx(), consultant1, client5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})
}

// =============================================================================
// Stats
// =============================================================================

func (s *ServiceSuite) TestStats() {
	expected := &models.Stats{
		Total: 5,
		ByStatus: map[models.Status]int64{
			models.StatusPending:  2,
			models.StatusAccepted: 1,
			models.StatusRejected: 2,
		},
		ByPairing: map[string]int64{
			"consultant->client": 4,
			"client->consultant": 1,
		},
	}
	s.mockStore.EXPECT().Stats(gomock.Any()).Return(expected, nil)

	stats, err := s.service.Stats(s.ctx())

	s.Require().NoError(err)
	s.Equal(expected, stats)
}

func (s *ServiceSuite) TestStats_StoreFailure() {
	s.mockStore.EXPECT().Stats(gomock.Any()).Return(nil, sentinel.ErrUnavailable)

	_, err := s.service.Stats(s.ctx())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
}
