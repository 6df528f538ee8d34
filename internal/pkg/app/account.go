package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"ridehub/internal/app/auth"
	"ridehub/internal/app/ds"
	"ridehub/internal/app/store"
)

// handleAdminCreateUser lets an admin mint admin and viewer accounts,
// the only way such roles come to exist; self-registration always gets
// the plain user role.
func (a *Application) handleAdminCreateUser(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if ident.Role != "admin" {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	var req ds.AdminCreateUserRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Role != "admin" && req.Role != "viewer" {
		writeJSON(w, http.StatusOK, ds.AdminCreateUserRp{
			Status: false, Message: "Invalid role specified. Must be one of: admin, viewer",
		})
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		writeJSON(w, http.StatusOK, ds.AdminCreateUserRp{Status: false, Message: "Invalid phone format"})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	user, err := a.store.CreateUser(r.Context(), req.Phone, req.Name, hash, req.Role)
	if errors.Is(err, store.ErrDuplicatePhone) {
		writeJSON(w, http.StatusOK, ds.AdminCreateUserRp{Status: false, Message: "Phone number already exists"})
		return
	}
	if err != nil {
		log.Println("HTTP--> create account:", err)
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, ds.AdminCreateUserRp{
		Status: true, Message: "User created successfully", UserID: &user.ID,
	})
}

func (a *Application) handleGetProfile(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	userID, ok := identUserID(w, ident)
	if !ok {
		return
	}
	user, err := a.store.FindUserByID(r.Context(), userID)
	if err != nil {
		log.Println("HTTP--> get profile:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil {
		httpError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, ds.UserProfileRp{
		ID:        user.ID,
		Phone:     user.Phone,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

func (a *Application) handleUpdateProfile(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	userID, ok := identUserID(w, ident)
	if !ok {
		return
	}
	var req ds.UserUpdateRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := a.store.UpdateUserName(r.Context(), userID, req.Name); err != nil {
		log.Println("HTTP--> update profile:", err)
		httpError(w, http.StatusInternalServerError, "Failed to update user name")
		return
	}
	writeJSON(w, http.StatusOK, ds.StatusRp{Status: true})
}

// handleUpdatePassword requires the current password before accepting a
// new one.
func (a *Application) handleUpdatePassword(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	userID, ok := identUserID(w, ident)
	if !ok {
		return
	}
	var req ds.PasswordUpdateRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, err := a.store.FindUserByID(r.Context(), userID)
	if err != nil || user == nil {
		log.Println("HTTP--> update password:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.OldPassword) {
		writeJSON(w, http.StatusBadRequest, ds.StatusRp{Status: false, Message: "Old password is incorrect"})
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err := a.store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		log.Println("HTTP--> update password:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, ds.StatusRp{Status: true, Message: "Password updated successfully"})
}

func (a *Application) handleDeleteUser(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if !ident.CanOperate() {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	err = a.store.DeleteUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, fmt.Sprintf("User with id %d not found", userID))
		return
	}
	if err != nil {
		log.Println("HTTP--> delete user:", err)
		httpError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, ds.StatusRp{
		Status:  true,
		Message: fmt.Sprintf("User %d deleted successfully", userID),
	})
}

func (a *Application) handleFilterOrders(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if !ident.CanOperate() {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	var req ds.OrderFilterRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	page, size := pageDefaults(req.Page, req.Size)
	total, orders, err := a.store.FilterOrders(r.Context(), store.OrderFilter{
		Statuses:    req.Status,
		UserID:      req.UserID,
		DriverID:    req.DriverID,
		PickupName:  req.PickupName,
		DropoffName: req.DropoffName,
		Page:        page,
		Size:        size,
	})
	if err != nil {
		log.Println("HTTP--> filter orders:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	data := make([]ds.OrderDetailRp, 0, len(orders))
	for _, o := range orders {
		data = append(data, ds.OrderDetailRp{
			OrderID:     o.OrderID,
			UserID:      o.UserID,
			DriverID:    o.DriverID,
			PickupLat:   o.PickupLat,
			PickupLng:   o.PickupLng,
			PickupName:  o.PickupName,
			DropoffLat:  o.DropoffLat,
			DropoffLng:  o.DropoffLng,
			DropoffName: o.DropoffName,
			Status:      o.Status,
			Passengers:  o.Passengers,
			Pooling:     o.Pooling,
			CreatedAt:   o.CreatedAt,
			UpdatedAt:   o.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, ds.PagedOrdersRp{Total: total, Page: page, Size: size, Data: data})
}

func (a *Application) handleFilterUsers(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if !ident.CanOperate() {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	var req ds.UserFilterRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	page, size := pageDefaults(req.Page, req.Size)
	total, users, err := a.store.FilterUsers(r.Context(), store.UserFilter{
		Name:  req.Name,
		Phone: req.Phone,
		Role:  req.Role,
		Page:  page,
		Size:  size,
	})
	if err != nil {
		log.Println("HTTP--> filter users:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	data := make([]ds.UserProfileRp, 0, len(users))
	for _, u := range users {
		data = append(data, ds.UserProfileRp{
			ID:        u.ID,
			Phone:     u.Phone,
			Name:      u.Name,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, ds.PagedUsersRp{Total: total, Page: page, Size: size, Data: data})
}

func pageDefaults(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return page, size
}
