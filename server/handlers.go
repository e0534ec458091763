package server

import (
	"net/http"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/server/auth/key"
	"github.com/Daskott/rolodex/shared"
	"github.com/gorilla/mux"
)

// ---------------------------------------------------------------------------------//
// Auth
// --------------------------------------------------------------------------------//

func (s *Server) signUp(rw http.ResponseWriter, r *http.Request) {
	data := shared.SignUpRequest{}
	if err := decodeBody(r, "signUp", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	session, err := s.accounts.SignUp(r.Context(), data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, session, http.StatusCreated)
}

func (s *Server) token(rw http.ResponseWriter, r *http.Request) {
	var session shared.Session
	var err error

	switch grantType := r.URL.Query().Get("grant_type"); grantType {
	case "password":
		grant := shared.PasswordGrant{}
		if err = decodeBody(r, "token", &grant); err == nil {
			session, err = s.accounts.SignInWithPassword(r.Context(), grant)
		}
	case "refresh_token":
		grant := shared.RefreshGrant{}
		if err = decodeBody(r, "token", &grant); err == nil {
			session, err = s.accounts.Refresh(r.Context(), grant)
		}
	case "pkce":
		grant := shared.PKCEGrant{}
		if err = decodeBody(r, "token", &grant); err == nil {
			session, err = s.accounts.ExchangeCode(r.Context(), grant)
		}
	default:
		err = shared.Validationf("token", "unsupported grant_type %q", grantType)
	}

	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, session, http.StatusOK)
}

func (s *Server) logout(rw http.ResponseWriter, r *http.Request) {
	if err := s.accounts.SignOut(r.Context(), requestClaims(r)); err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) getAuthUser(rw http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.GetUser(r.Context(), requestClaims(r).Subject)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, user, http.StatusOK)
}

// deleteAuthUser removes the caller's profile, contacts and credential.
func (s *Server) deleteAuthUser(rw http.ResponseWriter, r *http.Request) {
	uid := requestClaims(r).Subject

	if err := s.gateway.DeleteProfile(r.Context(), uid); err != nil {
		s.writeError(rw, err)
		return
	}

	if err := s.accounts.DeleteUser(r.Context(), uid); err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) authorize(rw http.ResponseWriter, r *http.Request) {
	data := shared.AuthorizeRequest{}
	if err := decodeBody(r, "authorize", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	code, err := s.accounts.Authorize(r.Context(), requestClaims(r).Subject, data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, shared.AuthorizeResponse{AuthCode: code}, http.StatusCreated)
}

func (s *Server) jwks(rw http.ResponseWriter, r *http.Request) {
	jwk, err := s.keyPair.JWK()
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, key.ExportJWKAsJWKS(jwk), http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Profiles
// --------------------------------------------------------------------------------//

func (s *Server) createProfile(rw http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)
	data := schema.User{}
	if err := decodeBody(r, "createProfile", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	if data.ID == "" {
		data.ID = claims.Subject
	}
	if data.ID != claims.Subject {
		s.writeError(rw, shared.E(shared.AuthError, "createProfile", shared.ErrForbidden))
		return
	}

	user, err := s.gateway.CreateProfile(r.Context(), data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, user, http.StatusCreated)
}

func (s *Server) findProfile(rw http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.FindProfile(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, user, http.StatusOK)
}

func (s *Server) fetchLinkedInProfile(rw http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.FetchLinkedInProfile(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, profile, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Contacts
// --------------------------------------------------------------------------------//

func (s *Server) listContacts(rw http.ResponseWriter, r *http.Request) {
	contacts, err := s.gateway.ListContactsForUser(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, contacts, http.StatusOK)
}

func (s *Server) createContact(rw http.ResponseWriter, r *http.Request) {
	data := schema.PartialContact{}
	if err := decodeBody(r, "createContact", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	contact, err := s.gateway.CreateContact(r.Context(), mux.Vars(r)["uid"], data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, contact, http.StatusCreated)
}

func (s *Server) updateContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := schema.PartialContact{}
	if err := decodeBody(r, "updateContact", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	if err := s.gateway.UpdateContact(r.Context(), vars["id"], data, vars["uid"]); err != nil {
		s.writeError(rw, err)
		return
	}

	contact, err := s.gateway.FindContact(r.Context(), vars["id"], vars["uid"])
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, contact, http.StatusOK)
}

func (s *Server) deleteContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.gateway.DeleteContact(r.Context(), vars["id"], vars["uid"]); err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Contact children
// --------------------------------------------------------------------------------//

func (s *Server) addContactMethod(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := schema.ContactMethodInput{}
	if err := decodeBody(r, "addContactMethod", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	method, err := s.gateway.AddContactMethod(r.Context(), vars["uid"], vars["id"], data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, method, http.StatusCreated)
}

func (s *Server) addSocialLink(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := schema.SocialLinkInput{}
	if err := decodeBody(r, "addSocialLink", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	link, err := s.gateway.AddSocialLink(r.Context(), vars["uid"], vars["id"], data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, link, http.StatusCreated)
}

func (s *Server) addConversation(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := schema.ConversationInput{}
	if err := decodeBody(r, "addConversation", &data); err != nil {
		s.writeError(rw, err)
		return
	}

	conversation, err := s.gateway.AddConversation(r.Context(), vars["uid"], vars["id"], data)
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, conversation, http.StatusCreated)
}

func (s *Server) updateContactMethod(rw http.ResponseWriter, r *http.Request) {
	data := schema.ContactMethodPatch{}
	s.updateChild(rw, r, "updateContactMethod", &data, func() schema.Patch { return data })
}

func (s *Server) updateSocialLink(rw http.ResponseWriter, r *http.Request) {
	data := schema.SocialLinkPatch{}
	s.updateChild(rw, r, "updateSocialLink", &data, func() schema.Patch { return data })
}

func (s *Server) updateConversation(rw http.ResponseWriter, r *http.Request) {
	data := schema.ConversationPatch{}
	s.updateChild(rw, r, "updateConversation", &data, func() schema.Patch { return data })
}

// updateChild decodes into target and applies the patch built by patch.
func (s *Server) updateChild(rw http.ResponseWriter, r *http.Request, op string, target interface{}, patch func() schema.Patch) {
	vars := mux.Vars(r)
	if err := decodeBody(r, op, target); err != nil {
		s.writeError(rw, err)
		return
	}

	if err := s.gateway.Update(r.Context(), vars["uid"], vars["id"], patch()); err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Images
// --------------------------------------------------------------------------------//

func (s *Server) uploadImage(rw http.ResponseWriter, r *http.Request) {
	const op = "uploadImage"

	r.Body = http.MaxBytesReader(rw, r.Body, shared.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(shared.MaxImageSize + (1 << 20)); err != nil {
		s.writeError(rw, shared.Validationf(op, "Image size should be less than 5MB"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(rw, shared.Validationf(op, "file is required"))
		return
	}
	defer file.Close()

	url, err := s.uploader.UploadContactImage(r.Context(), shared.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}, mux.Vars(r)["uid"])
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, imageResponse{URL: url}, http.StatusCreated)
}

func (s *Server) uploadRemoteImage(rw http.ResponseWriter, r *http.Request) {
	const op = "uploadRemoteImage"

	data := remoteImageRequest{}
	if err := decodeBody(r, op, &data); err != nil {
		s.writeError(rw, err)
		return
	}
	if err := s.validate.Struct(data); err != nil {
		s.writeError(rw, shared.E(shared.ValidationError, op, err))
		return
	}

	url, err := s.uploader.UploadImageFromURL(r.Context(), data.URL, mux.Vars(r)["uid"])
	if err != nil {
		s.writeError(rw, err)
		return
	}

	s.writeData(rw, imageResponse{URL: url}, http.StatusCreated)
}
