package internal

import (
	"fmt"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	List     endpoint.Endpoint
	Schedule endpoint.Endpoint
	Get      endpoint.Endpoint
	Tags     endpoint.Endpoint
	Create   endpoint.Endpoint
	Update   endpoint.Endpoint
	Delete   endpoint.Endpoint
}

// DonationEndpoints is a collection of endpoints for working with the donation service
type DonationEndpoints struct {
	CreateMonetary endpoint.Endpoint
	CreateGoods    endpoint.Endpoint
	Verify         endpoint.Endpoint
	Get            endpoint.Endpoint
	List           endpoint.Endpoint
}

// PaymentEndpoints is a collection of endpoints for working with the payment service
type PaymentEndpoints struct {
	Create  endpoint.Endpoint
	Confirm endpoint.Endpoint
	Get     endpoint.Endpoint
	List    endpoint.Endpoint
}

// ContactEndpoints is a collection of endpoints for the contact form
type ContactEndpoints struct {
	Submit endpoint.Endpoint
	List   endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	Login       endpoint.Endpoint
	Logout      endpoint.Endpoint
	WhoAmI      endpoint.Endpoint
	CreateAdmin endpoint.Endpoint
}

// The base for all responses which always contains a "success" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// createdResponse is returned by endpoints creating a new entity
type createdResponse struct {
	basicResponse
}

// StatusCode implements go-kit's StatusCoder
func (createdResponse) StatusCode() int {
	return http.StatusCreated
}

func respond(data interface{}) basicResponse {
	return basicResponse{Success: true, Data: data}
}

func respondCreated(data interface{}) createdResponse {
	return createdResponse{respond(data)}
}

func errIllegalRequest() error {
	return fmt.Errorf("illegal request parameter")
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints creates the endpoints needed to use the event service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		List:     MakeListEventsEndpoint(s),
		Schedule: MakeEventScheduleEndpoint(s),
		Get:      MakeGetEventEndpoint(s),
		Tags:     MakeListTagsEndpoint(s),
		Create:   EnsureAdmin(MakeCreateEventEndpoint(s)),
		Update:   EnsureAdmin(MakeUpdateEventEndpoint(s)),
		Delete:   EnsureAdmin(MakeDeleteEventEndpoint(s)),
	}
}

// MakeListEventsEndpoint returns an endpoint calling the List method on the provided EventService
func MakeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventListRequest)
		if !ok {
			return nil, errIllegalRequest()
		}
		lst, err := s.List(ctx, req.Tags)
		if err != nil {
			return nil, err
		}
		return respond(lst), nil
	}
}

// MakeEventScheduleEndpoint returns an endpoint calling the Schedule method on the provided EventService
func MakeEventScheduleEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventListRequest)
		if !ok {
			return nil, errIllegalRequest()
		}
		schedule, err := s.Schedule(ctx, req.Tags)
		if err != nil {
			return nil, err
		}
		return respond(schedule), nil
	}
}

// MakeGetEventEndpoint returns an endpoint calling the Get method on the provided EventService
func MakeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errIllegalRequest()
		}
		ev, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return respond(ev), nil
	}
}

// MakeListTagsEndpoint returns an endpoint calling the Tags method on the provided EventService
func MakeListTagsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		tags, err := s.Tags(ctx)
		if err != nil {
			return nil, err
		}
		return respond(tags), nil
	}
}

// MakeCreateEventEndpoint returns an endpoint calling the Create method on the provided EventService
func MakeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		in, ok := request.(EventInput)
		if !ok {
			return nil, errIllegalRequest()
		}
		ev, err := s.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		return respondCreated(ev), nil
	}
}

// MakeUpdateEventEndpoint returns an endpoint calling the Update method on the provided EventService
func MakeUpdateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		in, ok := request.(EventInput)
		if !ok {
			return nil, errIllegalRequest()
		}
		ev, err := s.Update(ctx, in)
		if err != nil {
			return nil, err
		}
		return respond(ev), nil
	}
}

// MakeDeleteEventEndpoint returns an endpoint calling the Delete method on the provided EventService
func MakeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, errIllegalRequest()
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return respond(struct{}{}), nil
	}
}

// -- Donations --------------------------------------------------------------------------------------------------------

// MakeDonationEndpoints creates the endpoints needed to use the donation service
func MakeDonationEndpoints(s DonationService) DonationEndpoints {
	return DonationEndpoints{
		CreateMonetary: func(ctx context.Context, request interface{}) (interface{}, error) {
			req, ok := request.(models.MonetaryDonationRequest)
			if !ok {
				return nil, errIllegalRequest()
			}
			d, err := s.CreateMonetary(ctx, req)
			if err != nil {
				return nil, err
			}
			return respondCreated(d), nil
		},
		CreateGoods: func(ctx context.Context, request interface{}) (interface{}, error) {
			req, ok := request.(models.GoodsDonationRequest)
			if !ok {
				return nil, errIllegalRequest()
			}
			d, err := s.CreateGoods(ctx, req)
			if err != nil {
				return nil, err
			}
			return respondCreated(d), nil
		},
		Verify: EnsureAdmin(func(ctx context.Context, request interface{}) (interface{}, error) {
			id, ok := request.(string)
			if !ok {
				return nil, errIllegalRequest()
			}
			d, err := s.Verify(ctx, id)
			if err != nil {
				return nil, err
			}
			return respond(d), nil
		}),
		Get: EnsureAdmin(func(ctx context.Context, request interface{}) (interface{}, error) {
			id, ok := request.(string)
			if !ok {
				return nil, errIllegalRequest()
			}
			d, err := s.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return respond(d), nil
		}),
		List: EnsureAdmin(func(ctx context.Context, _ interface{}) (interface{}, error) {
			lst, err := s.List(ctx)
			if err != nil {
				return nil, err
			}
			return respond(lst), nil
		}),
	}
}

// -- Payments ---------------------------------------------------------------------------------------------------------

// MakePaymentEndpoints creates the endpoints needed to use the payment service
func MakePaymentEndpoints(s PaymentService) PaymentEndpoints {
	return PaymentEndpoints{
		Create: func(ctx context.Context, request interface{}) (interface{}, error) {
			req, ok := request.(models.PaymentRequest)
			if !ok {
				return nil, errIllegalRequest()
			}
			p, err := s.Create(ctx, req)
			if err != nil {
				return nil, err
			}
			return respondCreated(p), nil
		},
		Confirm: EnsureAdmin(func(ctx context.Context, request interface{}) (interface{}, error) {
			id, ok := request.(string)
			if !ok {
				return nil, errIllegalRequest()
			}
			p, err := s.Confirm(ctx, id)
			if err != nil {
				return nil, err
			}
			return respond(p), nil
		}),
		Get: EnsureAdmin(func(ctx context.Context, request interface{}) (interface{}, error) {
			id, ok := request.(string)
			if !ok {
				return nil, errIllegalRequest()
			}
			p, err := s.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return respond(p), nil
		}),
		List: EnsureAdmin(func(ctx context.Context, _ interface{}) (interface{}, error) {
			lst, err := s.List(ctx)
			if err != nil {
				return nil, err
			}
			return respond(lst), nil
		}),
	}
}

// -- Contact ----------------------------------------------------------------------------------------------------------

// MakeContactEndpoints creates the endpoints needed to use the contact service
func MakeContactEndpoints(s ContactService) ContactEndpoints {
	return ContactEndpoints{
		Submit: func(ctx context.Context, request interface{}) (interface{}, error) {
			req, ok := request.(models.ContactRequest)
			if !ok {
				return nil, errIllegalRequest()
			}
			c, err := s.Submit(ctx, req)
			if err != nil {
				return nil, err
			}
			return respondCreated(c), nil
		},
		List: EnsureAdmin(func(ctx context.Context, _ interface{}) (interface{}, error) {
			lst, err := s.List(ctx)
			if err != nil {
				return nil, err
			}
			return respond(lst), nil
		}),
	}
}

// -- Session ----------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints creates the endpoints needed to use the session service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		Login:       MakeLoginEndpoint(s),
		Logout:      EnsureAdmin(MakeLogoutEndpoint(s)),
		WhoAmI:      EnsureAdmin(MakeWhoAmIEndpoint()),
		CreateAdmin: EnsureAdmin(MakeCreateAdminEndpoint(s)),
	}
}

// MakeLoginEndpoint returns an endpoint calling the Login method on the provided SessionService
func MakeLoginEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(loginRequest)
		if !ok {
			return nil, errIllegalRequest()
		}
		info, err := s.Login(ctx, req.User, req.Pass)
		if err != nil {
			return nil, err
		}
		return respond(info), nil
	}
}

// MakeLogoutEndpoint returns an endpoint revoking the access token of the current call
func MakeLogoutEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		if err := s.Logout(ctx, ctxhelper.Claims(ctx)); err != nil {
			return nil, err
		}
		return respond(struct{}{}), nil
	}
}

// MakeWhoAmIEndpoint returns an endpoint returning the user of the current call
func MakeWhoAmIEndpoint() endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		return respond(ctxhelper.User(ctx)), nil
	}
}

// MakeCreateAdminEndpoint returns an endpoint calling the CreateAdmin method on the provided SessionService
func MakeCreateAdminEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(models.CreateUserRequest)
		if !ok {
			return nil, errIllegalRequest()
		}
		u, err := s.CreateAdmin(ctx, req)
		if err != nil {
			return nil, err
		}
		return respondCreated(u), nil
	}
}
