package api

import (
	"net/http"

	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/state"
)

type serviceRequest struct {
	Active          *bool   `json:"active,omitempty"`
	Name            string  `json:"name"`
	Interval        uint32  `json:"interval"`
	URL             string  `json:"url"`
	Timeout         uint32  `json:"timeout"`
	ServiceType     string  `json:"service_type"`
	Retry           uint32  `json:"retry,omitempty"`
	RetryInterval   uint32  `json:"retry_interval,omitempty"`
	Invert          bool    `json:"invert,omitempty"`
	ExpectedCode    *int    `json:"expected_code,omitempty"`
	ExpectedPayload *string `json:"expected_payload,omitempty"`
}

func (req *serviceRequest) validate() (string, bool) {
	if req.Name == "" {
		return "name is required", false
	}
	if req.URL == "" {
		return "url is required", false
	}
	if req.Interval < 1 {
		return "interval: must be >= 1 second", false
	}
	if req.Timeout < 1 {
		return "timeout: must be >= 1 second", false
	}
	st := model.ServiceType(req.ServiceType)
	if st != model.ServiceTypePing && st != model.ServiceTypeHTTP {
		return "service_type: must be ping or http", false
	}
	if req.ExpectedCode != nil && (*req.ExpectedCode < 100 || *req.ExpectedCode > 599) {
		return "expected_code: must be a valid HTTP status", false
	}
	return "", true
}

func (req *serviceRequest) apply(svc *model.Service) {
	svc.Active = true
	if req.Active != nil {
		svc.Active = *req.Active
	}
	svc.Name = req.Name
	svc.Interval = req.Interval
	svc.URL = req.URL
	svc.Timeout = req.Timeout
	svc.ServiceType = model.ServiceType(req.ServiceType)
	svc.Retry = req.Retry
	svc.RetryInterval = req.RetryInterval
	svc.Invert = req.Invert
	svc.ExpectedCode = req.ExpectedCode
	svc.ExpectedPayload = req.ExpectedPayload
}

// HandleListServices returns all services.
func HandleListServices(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := services.List()
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if list == nil {
			list = []model.Service{}
		}
		WriteJSON(w, http.StatusOK, list)
	})
}

// HandleGetService returns one service by id.
func HandleGetService(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r)
		if !ok {
			return
		}
		svc, err := services.Get(id)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, svc)
	})
}

// HandleCreateService creates a service owned by the calling user.
func HandleCreateService(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CurrentUser(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
			return
		}
		var req serviceRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if msg, ok := req.validate(); !ok {
			writeInvalidArgument(w, msg)
			return
		}

		svc := model.Service{UserID: claims.UserID}
		req.apply(&svc)
		id, err := services.Insert(svc)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		created, err := services.Get(id)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	})
}

// HandleUpdateService replaces a service's configuration.
func HandleUpdateService(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r)
		if !ok {
			return
		}
		var req serviceRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if msg, ok := req.validate(); !ok {
			writeInvalidArgument(w, msg)
			return
		}

		svc, err := services.Get(id)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		req.apply(&svc)
		if err := services.Update(svc); err != nil {
			writeRepoError(w, err)
			return
		}
		updated, err := services.Get(id)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	})
}

// HandleDeleteService removes a service and its logs.
func HandleDeleteService(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r)
		if !ok {
			return
		}
		if err := services.Delete(id); err != nil {
			writeRepoError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
