// Package hcl reads configurator definitions written in HCL and translates
// them into the format-agnostic config.Model.
//
// A definition file holds one or more `tab` blocks:
//
//	tab "door" {
//	  name = { en = "Door" }
//
//	  section "frame" {
//	    position = "left"
//
//	    parameter "L" {
//	      kind    = "float"
//	      min     = 100
//	      max     = 3000
//	      default = 2100
//	    }
//
//	    parameter "H" {
//	      kind         = "float"
//	      auto         = true
//	      default_auto = true
//	      formula      = "param.L / 2"
//	    }
//	  }
//
//	  preview {
//	    shape "leaf" {
//	      type   = "rectangle"
//	      width  = "param.L / 10"
//	      height = 40
//	    }
//	  }
//	}
//
// Formulas are kept as strings; the schema loader parses them.
package hcl
