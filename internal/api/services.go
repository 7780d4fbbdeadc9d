package api

// Service accessors group Client methods by resource.
// Each service embeds *Client so callers can reach shared settings.

type ClassifyService struct{ *Client }

type FacesService struct{ *Client }

type ClassifiersService struct{ *Client }

type UserDataService struct{ *Client }

func (c *Client) Classify() ClassifyService {
	return ClassifyService{c}
}

func (c *Client) Faces() FacesService {
	return FacesService{c}
}

func (c *Client) Classifiers() ClassifiersService {
	return ClassifiersService{c}
}

func (c *Client) UserData() UserDataService {
	return UserDataService{c}
}
